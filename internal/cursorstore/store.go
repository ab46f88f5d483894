package cursorstore

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists per-channel resume cursors in SQLite so polling picks
// up where it left off after a restart. Writes happen only when the
// poller advances, which keeps the stored cursor monotonic.
type Store struct {
	db *sql.DB
}

// Open opens or creates the cursor database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cursors (
		channel_id   TEXT PRIMARY KEY,
		last_post_id TEXT NOT NULL,
		updated_at   TIMESTAMP NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the stored cursor for a channel, or "" when the channel
// has never yielded a post.
func (s *Store) Get(channelID string) (string, error) {
	var postID string
	err := s.db.QueryRow(
		"SELECT last_post_id FROM cursors WHERE channel_id = ?", channelID,
	).Scan(&postID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read cursor for %s: %w", channelID, err)
	}
	return postID, nil
}

// Set stores the cursor for a channel, replacing any previous value.
func (s *Store) Set(channelID, postID string) error {
	query := `
	INSERT INTO cursors (channel_id, last_post_id, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(channel_id) DO UPDATE SET
		last_post_id = excluded.last_post_id,
		updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, channelID, postID, time.Now().UTC()); err != nil {
		return fmt.Errorf("write cursor for %s: %w", channelID, err)
	}
	return nil
}

// All returns every stored cursor keyed by channel id.
func (s *Store) All() (map[string]string, error) {
	rows, err := s.db.Query("SELECT channel_id, last_post_id FROM cursors")
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}
	defer rows.Close()

	cursors := make(map[string]string)
	for rows.Next() {
		var channelID, postID string
		if err := rows.Scan(&channelID, &postID); err != nil {
			return nil, fmt.Errorf("scan cursor: %w", err)
		}
		cursors[channelID] = postID
	}
	return cursors, rows.Err()
}
