package mattermost

// User is a Mattermost account, including the bot's own.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Team is a Mattermost team the bot belongs to.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Channel is one channel of a team. Type "D" marks a direct-message
// channel.
type Channel struct {
	ID          string `json:"id"`
	TeamID      string `json:"team_id"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

// ChannelMember is one membership record of a channel.
type ChannelMember struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
}

// Post is a single message. CreateAt/UpdateAt are Unix milliseconds; an
// edited post has UpdateAt != CreateAt. RootID is non-empty for replies
// inside a thread.
type Post struct {
	ID        string `json:"id"`
	CreateAt  int64  `json:"create_at"`
	UpdateAt  int64  `json:"update_at"`
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	RootID    string `json:"root_id"`
	Message   string `json:"message"`
}

// PostList is one page of channel posts. NextPostID is the boundary to
// resume from when HasNext is set; otherwise the first id in Order (the
// most recent post of this page) is the resume point.
type PostList struct {
	Order      []string        `json:"order"`
	Posts      map[string]Post `json:"posts"`
	NextPostID string          `json:"next_post_id"`
	PrevPostID string          `json:"prev_post_id"`
	HasNext    bool            `json:"has_next"`
}
