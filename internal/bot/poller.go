package bot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wg21tools/paperbot/internal/mattermost"
)

const (
	rosterRefreshInterval = 5 * time.Minute
	pollPageSize          = 5
)

// Transport is the slice of the chat API the bot consumes.
// *mattermost.Client is the production implementation.
type Transport interface {
	GetUser(ctx context.Context, userID string) (*mattermost.User, error)
	GetUserTeams(ctx context.Context, userID string) ([]mattermost.Team, error)
	GetChannelsForUser(ctx context.Context, userID, teamID string) ([]mattermost.Channel, error)
	GetChannelMembers(ctx context.Context, channelID string) ([]mattermost.ChannelMember, error)
	GetPostsForChannel(ctx context.Context, channelID, after string, perPage int) (*mattermost.PostList, error)
	CreatePost(ctx context.Context, channelID, rootID, message string) error
}

// CursorStore persists the per-channel resume position.
type CursorStore interface {
	Get(channelID string) (string, error)
	Set(channelID, postID string) error
}

// Poller tails every channel the bot is in. It keeps the channel roster
// fresh on a fixed interval, requests only posts newer than each
// channel's cursor and merges the pages into one batch per cycle,
// preserving each page's order.
type Poller struct {
	transport Transport
	cursors   CursorStore
	self      *mattermost.User
	logger    *zap.Logger

	channels          []mattermost.Channel
	lastRosterRefresh time.Time
	now               func() time.Time
}

// NewPoller creates a poller for the given bot account. The roster is
// fetched on the first Poll.
func NewPoller(transport Transport, cursors CursorStore, self *mattermost.User, logger *zap.Logger) *Poller {
	return &Poller{
		transport: transport,
		cursors:   cursors,
		self:      self,
		logger:    logger,
		now:       time.Now,
	}
}

// Poll refreshes the roster when due, then reads every channel past its
// cursor. Any transport error aborts the cycle; the next cycle retries.
func (p *Poller) Poll(ctx context.Context) ([]mattermost.Post, error) {
	if err := p.refreshRosterIfStale(ctx); err != nil {
		return nil, err
	}

	var posts []mattermost.Post
	for _, ch := range p.channels {
		page, err := p.readChannel(ctx, ch)
		if err != nil {
			return nil, err
		}
		posts = append(posts, page...)
	}
	return posts, nil
}

// Channel returns the roster entry for a channel id, if known.
func (p *Poller) Channel(id string) (mattermost.Channel, bool) {
	for _, ch := range p.channels {
		if ch.ID == id {
			return ch, true
		}
	}
	return mattermost.Channel{}, false
}

func (p *Poller) refreshRosterIfStale(ctx context.Context) error {
	if p.now().Before(p.lastRosterRefresh.Add(rosterRefreshInterval)) {
		return nil
	}
	return p.refreshRoster(ctx)
}

// refreshRoster replaces the channel roster and reports the diff
// against the previous one.
func (p *Poller) refreshRoster(ctx context.Context) error {
	teams, err := p.transport.GetUserTeams(ctx, p.self.ID)
	if err != nil {
		return fmt.Errorf("refresh roster: %w", err)
	}

	var updated []mattermost.Channel
	for _, team := range teams {
		channels, err := p.transport.GetChannelsForUser(ctx, p.self.ID, team.ID)
		if err != nil {
			return fmt.Errorf("refresh roster: %w", err)
		}
		updated = append(updated, channels...)
	}

	before := make(map[string]bool, len(p.channels))
	for _, ch := range p.channels {
		before[ch.ID] = true
	}
	after := make(map[string]bool, len(updated))
	for _, ch := range updated {
		after[ch.ID] = true
	}

	p.lastRosterRefresh = p.now()
	p.channels = updated

	for _, ch := range updated {
		if before[ch.ID] {
			continue
		}
		name := ch.DisplayName
		if name == "" {
			name = "(none)"
		}
		members, err := p.transport.GetChannelMembers(ctx, ch.ID)
		if err != nil {
			return fmt.Errorf("members of joined channel %s: %w", ch.ID, err)
		}
		p.logger.Info("joined channel",
			zap.String("channel_id", ch.ID),
			zap.String("name", name),
			zap.Int("members", len(members)))
	}
	for id := range before {
		if !after[id] {
			p.logger.Info("left channel", zap.String("channel_id", id))
		}
	}
	return nil
}

// readChannel fetches the next page of a channel and advances the
// cursor on any non-empty result. The new cursor is the transport's
// next-page boundary when more pages exist, otherwise the most recent
// post of this page; both only ever move forward.
func (p *Poller) readChannel(ctx context.Context, ch mattermost.Channel) ([]mattermost.Post, error) {
	cursor, err := p.cursors.Get(ch.ID)
	if err != nil {
		return nil, err
	}

	list, err := p.transport.GetPostsForChannel(ctx, ch.ID, cursor, pollPageSize)
	if err != nil {
		return nil, err
	}

	if len(list.Posts) >= 1 {
		next := ""
		if list.HasNext {
			next = list.NextPostID
		} else if len(list.Order) > 0 {
			next = list.Order[0]
		}
		if next != "" {
			if err := p.cursors.Set(ch.ID, next); err != nil {
				return nil, err
			}
		}
	}

	// Keep the transport's ordering; which post counts as the first
	// command of a batch depends on it.
	posts := make([]mattermost.Post, 0, len(list.Order))
	for _, id := range list.Order {
		if post, ok := list.Posts[id]; ok {
			posts = append(posts, post)
		}
	}
	return posts, nil
}
