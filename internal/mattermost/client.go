package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a Mattermost REST API v4 client carrying a personal access
// token. Session lifecycle is the server's concern; the token rides on
// every request.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for scheme://host:port.
func NewClient(scheme, host string, port int, token string) *Client {
	return &Client{
		baseURL: fmt.Sprintf("%s://%s:%d/api/v4", scheme, host, port),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// do performs one API call and decodes the response into result when
// result is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, result interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Me fetches the account the token belongs to.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, "GET", "/users/me", nil, nil, &user); err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}
	return &user, nil
}

// GetUser fetches a user by id.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	if err := c.do(ctx, "GET", "/users/"+userID, nil, nil, &user); err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return &user, nil
}

// GetUserTeams lists the teams a user belongs to.
func (c *Client) GetUserTeams(ctx context.Context, userID string) ([]Team, error) {
	var teams []Team
	if err := c.do(ctx, "GET", "/users/"+userID+"/teams", nil, nil, &teams); err != nil {
		return nil, fmt.Errorf("get teams: %w", err)
	}
	return teams, nil
}

// GetChannelsForUser lists the channels of one team the user is in.
func (c *Client) GetChannelsForUser(ctx context.Context, userID, teamID string) ([]Channel, error) {
	var channels []Channel
	path := "/users/" + userID + "/teams/" + teamID + "/channels"
	if err := c.do(ctx, "GET", path, nil, nil, &channels); err != nil {
		return nil, fmt.Errorf("get channels for team %s: %w", teamID, err)
	}
	return channels, nil
}

// GetChannelMembers lists the members of a channel.
func (c *Client) GetChannelMembers(ctx context.Context, channelID string) ([]ChannelMember, error) {
	var members []ChannelMember
	if err := c.do(ctx, "GET", "/channels/"+channelID+"/members", nil, nil, &members); err != nil {
		return nil, fmt.Errorf("get members of %s: %w", channelID, err)
	}
	return members, nil
}

// GetPostsForChannel fetches up to perPage posts of a channel. A
// non-empty after id requests only posts newer than that id; otherwise
// the most recent page is returned.
func (c *Client) GetPostsForChannel(ctx context.Context, channelID, after string, perPage int) (*PostList, error) {
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(perPage))
	if after != "" {
		query.Set("after", after)
	}

	var list PostList
	if err := c.do(ctx, "GET", "/channels/"+channelID+"/posts", query, nil, &list); err != nil {
		return nil, fmt.Errorf("get posts of %s: %w", channelID, err)
	}
	return &list, nil
}

// CreatePost posts a reply into a channel, threaded under rootID.
func (c *Client) CreatePost(ctx context.Context, channelID, rootID, message string) error {
	payload := map[string]string{
		"channel_id": channelID,
		"root_id":    rootID,
		"message":    message,
	}
	if err := c.do(ctx, "POST", "/posts", nil, payload, nil); err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}
