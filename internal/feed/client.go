package feed

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Client fetches the remote document index with ETag revalidation. The
// ETag and the last payload body are kept in cacheDir so an unchanged
// index is served from disk after a 304.
type Client struct {
	url        string
	cacheDir   string
	httpClient *http.Client
}

// NewClient creates a feed client caching into cacheDir.
func NewClient(url, cacheDir string) *Client {
	return &Client{
		url:      url,
		cacheDir: cacheDir,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch retrieves the document index and decodes it into entries in
// payload order. A 304 response is answered from the cached body.
func (c *Client) Fetch(ctx context.Context) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if etag := c.readCachedETag(); etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if err := c.writeCache(resp.Header.Get("ETag"), body); err != nil {
			return nil, fmt.Errorf("write feed cache: %w", err)
		}
		return decodeEntries(bytes.NewReader(body))
	case http.StatusNotModified:
		body, err := os.ReadFile(c.bodyPath())
		if err != nil {
			return nil, fmt.Errorf("read cached feed body: %w", err)
		}
		return decodeEntries(bytes.NewReader(body))
	default:
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}
}

// decodeEntries walks the payload token by token so the order of the
// top-level object keys survives decoding. A plain map would throw the
// order away and with it the equal-revision tie-break.
func decodeEntries(r io.Reader) ([]Entry, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("decode payload: expected object, got %v", tok)
	}

	var entries []Entry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode payload key: %w", err)
		}
		id, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("decode payload key: expected string, got %v", tok)
		}

		var doc Document
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", id, err)
		}
		entries = append(entries, Entry{ID: id, Doc: doc})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return entries, nil
}

func (c *Client) readCachedETag() string {
	etag, err := os.ReadFile(c.etagPath())
	if err != nil {
		return ""
	}
	if _, err := os.Stat(c.bodyPath()); err != nil {
		// An ETag without a body can't be revalidated against.
		return ""
	}
	return strings.TrimSpace(string(etag))
}

func (c *Client) writeCache(etag string, body []byte) error {
	if err := os.MkdirAll(c.cacheDir, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(c.bodyPath(), body, 0644); err != nil {
		return err
	}
	if etag == "" {
		// Server stopped sending ETags; drop the stale one.
		os.Remove(c.etagPath())
		return nil
	}
	return os.WriteFile(c.etagPath(), []byte(etag), 0644)
}

func (c *Client) etagPath() string {
	return filepath.Join(c.cacheDir, c.cacheKey()+".etag")
}

func (c *Client) bodyPath() string {
	return filepath.Join(c.cacheDir, c.cacheKey()+".json")
}

func (c *Client) cacheKey() string {
	sum := sha256.Sum256([]byte(c.url))
	return hex.EncodeToString(sum[:8])
}
