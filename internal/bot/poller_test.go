package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wg21tools/paperbot/internal/mattermost"
)

type sentReply struct {
	channelID string
	rootID    string
	message   string
}

// fakeTransport serves a fixed roster and one page of posts per channel.
type fakeTransport struct {
	teams       []mattermost.Team
	channels    map[string][]mattermost.Channel // by team id
	members     map[string][]mattermost.ChannelMember
	pages       map[string]*mattermost.PostList // by channel id
	replies     []sentReply
	memberCalls []string
	lastAfter   map[string]string
}

func (f *fakeTransport) GetUser(ctx context.Context, userID string) (*mattermost.User, error) {
	return &mattermost.User{ID: userID, Username: userID}, nil
}

func (f *fakeTransport) GetUserTeams(ctx context.Context, userID string) ([]mattermost.Team, error) {
	return f.teams, nil
}

func (f *fakeTransport) GetChannelsForUser(ctx context.Context, userID, teamID string) ([]mattermost.Channel, error) {
	return f.channels[teamID], nil
}

func (f *fakeTransport) GetChannelMembers(ctx context.Context, channelID string) ([]mattermost.ChannelMember, error) {
	f.memberCalls = append(f.memberCalls, channelID)
	return f.members[channelID], nil
}

func (f *fakeTransport) GetPostsForChannel(ctx context.Context, channelID, after string, perPage int) (*mattermost.PostList, error) {
	if f.lastAfter == nil {
		f.lastAfter = make(map[string]string)
	}
	f.lastAfter[channelID] = after
	if page, ok := f.pages[channelID]; ok {
		return page, nil
	}
	return &mattermost.PostList{}, nil
}

func (f *fakeTransport) CreatePost(ctx context.Context, channelID, rootID, message string) error {
	f.replies = append(f.replies, sentReply{channelID, rootID, message})
	return nil
}

type fakeCursors struct {
	m map[string]string
}

func (f *fakeCursors) Get(channelID string) (string, error) { return f.m[channelID], nil }
func (f *fakeCursors) Set(channelID, postID string) error {
	f.m[channelID] = postID
	return nil
}

func singleChannelTransport(page *mattermost.PostList) *fakeTransport {
	return &fakeTransport{
		teams: []mattermost.Team{{ID: "t1"}},
		channels: map[string][]mattermost.Channel{
			"t1": {{ID: "ch1", DisplayName: "general"}},
		},
		pages: map[string]*mattermost.PostList{"ch1": page},
	}
}

func newTestPoller(tr *fakeTransport, cursors *fakeCursors) *Poller {
	self := &mattermost.User{ID: "bot-id", Username: "paperbot"}
	return NewPoller(tr, cursors, self, zap.NewNop())
}

func TestPollAdvancesCursorToMostRecentPost(t *testing.T) {
	tr := singleChannelTransport(&mattermost.PostList{
		Order: []string{"p2", "p1"},
		Posts: map[string]mattermost.Post{
			"p1": {ID: "p1", ChannelID: "ch1"},
			"p2": {ID: "p2", ChannelID: "ch1"},
		},
	})
	cursors := &fakeCursors{m: map[string]string{}}

	posts, err := newTestPoller(tr, cursors).Poll(context.Background())
	require.NoError(t, err)
	assert.Len(t, posts, 2)
	assert.Equal(t, "p2", cursors.m["ch1"])
}

func TestPollAdvancesCursorToNextPageBoundary(t *testing.T) {
	tr := singleChannelTransport(&mattermost.PostList{
		Order:      []string{"p2", "p1"},
		Posts:      map[string]mattermost.Post{"p1": {ID: "p1"}, "p2": {ID: "p2"}},
		HasNext:    true,
		NextPostID: "p9",
	})
	cursors := &fakeCursors{m: map[string]string{}}

	_, err := newTestPoller(tr, cursors).Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "p9", cursors.m["ch1"])
}

func TestPollKeepsCursorOnEmptyPage(t *testing.T) {
	tr := singleChannelTransport(&mattermost.PostList{})
	cursors := &fakeCursors{m: map[string]string{"ch1": "p5"}}

	posts, err := newTestPoller(tr, cursors).Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Equal(t, "p5", cursors.m["ch1"])
	assert.Equal(t, "p5", tr.lastAfter["ch1"], "poll requests posts after the stored cursor")
}

func TestRosterRefreshDetectsJoinsAndLeaves(t *testing.T) {
	tr := &fakeTransport{
		teams: []mattermost.Team{{ID: "t1"}},
		channels: map[string][]mattermost.Channel{
			"t1": {{ID: "chA"}, {ID: "chB"}},
		},
		pages: map[string]*mattermost.PostList{},
	}
	p := newTestPoller(tr, &fakeCursors{m: map[string]string{}})

	clock := time.Now()
	p.now = func() time.Time { return clock }

	_, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"chA", "chB"}, tr.memberCalls, "every channel is a join on the first refresh")

	// Within the refresh interval the roster is untouched.
	tr.channels["t1"] = []mattermost.Channel{{ID: "chB"}, {ID: "chC"}}
	clock = clock.Add(time.Minute)
	_, err = p.Poll(context.Background())
	require.NoError(t, err)
	_, stillKnown := p.Channel("chA")
	assert.True(t, stillKnown)

	// Past the interval the diff is applied: chC joined, chA left.
	tr.memberCalls = nil
	clock = clock.Add(rosterRefreshInterval)
	_, err = p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"chC"}, tr.memberCalls)
	_, known := p.Channel("chA")
	assert.False(t, known)
	_, known = p.Channel("chC")
	assert.True(t, known)
}
