package refindex

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/wg21tools/paperbot/internal/feed"
)

// refreshCooldown limits how often the cooldown-gated refresh path hits
// the feed. The per-lookup path in Resolve is not subject to it.
const refreshCooldown = 30 * time.Second

// Fetcher retrieves the raw document feed. *feed.Client is the
// production implementation.
type Fetcher interface {
	Fetch(ctx context.Context) ([]feed.Entry, error)
}

// group holds every known revision of one base reference plus the id
// considered latest. latestID always refers to a key in revisions.
type group struct {
	revisions map[string]*feed.Document
	order     []string // insertion order, for deterministic keyword blobs
	latestID  string
	latestRev int
}

// snapshot is one immutable generation of the index: the reference
// groups and the search index derived from them, built together and
// published together.
type snapshot struct {
	groups map[string]*group
	search bleve.Index
}

// Index answers reference-resolution and keyword-search queries against
// the most recently ingested feed payload. Refreshes build a complete
// new snapshot off to the side and publish it with a single pointer
// swap; readers never observe a half-rebuilt index.
type Index struct {
	fetcher Fetcher
	current atomic.Pointer[snapshot]

	mu          sync.Mutex // serializes refreshes and cooldown state
	lastRefresh time.Time  // cooldown path only
	now         func() time.Time
}

// NewIndex creates an empty index. Call Refresh before the first query.
func NewIndex(fetcher Fetcher) *Index {
	return &Index{
		fetcher: fetcher,
		now:     time.Now,
	}
}

// Refresh rebuilds the index from a fresh feed fetch, unconditionally.
// It backs the per-lookup policy: every Resolve goes through here.
func (ix *Index) Refresh(ctx context.Context) error {
	entries, err := ix.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch document feed: %w", err)
	}

	snap, err := buildSnapshot(entries)
	if err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	ix.mu.Lock()
	old := ix.current.Swap(snap)
	ix.mu.Unlock()

	if old != nil {
		old.search.Close()
	}
	return nil
}

// RefreshIfStale refreshes at most once per cooldown window. This is
// the background-polling policy; it exists alongside the unconditional
// per-lookup refresh in Resolve and the two must not be collapsed.
func (ix *Index) RefreshIfStale(ctx context.Context) error {
	ix.mu.Lock()
	due := ix.lastRefresh.Add(refreshCooldown)
	if ix.now().Before(due) {
		ix.mu.Unlock()
		return nil
	}
	ix.mu.Unlock()

	if err := ix.Refresh(ctx); err != nil {
		return err
	}

	ix.mu.Lock()
	ix.lastRefresh = ix.now()
	ix.mu.Unlock()
	return nil
}

// Resolve maps a base reference or full document id to its record. A
// full id (revision suffix present) is looked up as given; a base
// reference resolves through its group's latest pointer. A miss returns
// the original input and a nil record. The lookup always runs against a
// freshly fetched feed.
func (ix *Index) Resolve(ctx context.Context, refOrID string) (string, *feed.Document, error) {
	if err := ix.Refresh(ctx); err != nil {
		return refOrID, nil, err
	}

	snap := ix.current.Load()

	var base, key string
	if revisionPattern.MatchString(refOrID) {
		base, _ = SplitRevision(refOrID)
		key = refOrID
	} else {
		base = refOrID
		if g, ok := snap.groups[base]; ok {
			key = g.latestID
		}
	}

	g, ok := snap.groups[base]
	if !ok {
		return refOrID, nil, nil
	}
	doc, ok := g.revisions[key]
	if !ok {
		return refOrID, nil, nil
	}
	return key, doc, nil
}

// buildSnapshot folds the ordered feed entries into reference groups
// and derives the search index. The latest pointer moves on rev >=
// current, so of two equal revisions the later feed entry wins.
func buildSnapshot(entries []feed.Entry) (*snapshot, error) {
	groups := make(map[string]*group)
	for _, e := range entries {
		base, rev := SplitRevision(e.ID)

		g, ok := groups[base]
		if !ok {
			g = &group{revisions: make(map[string]*feed.Document)}
			groups[base] = g
		}

		doc := e.Doc
		if _, seen := g.revisions[e.ID]; !seen {
			g.order = append(g.order, e.ID)
		}
		g.revisions[e.ID] = &doc

		if g.latestID == "" || rev >= g.latestRev {
			g.latestID = e.ID
			g.latestRev = rev
		}
	}

	search, err := buildSearchIndex(groups)
	if err != nil {
		return nil, err
	}
	return &snapshot{groups: groups, search: search}, nil
}
