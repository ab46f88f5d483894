package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = `{
	"P2R0": {"type": "paper", "title": "Second", "long_link": "https://wg21.link/p2r0"},
	"P1":   {"type": "paper", "title": "First", "long_link": "https://wg21.link/p1"},
	"CWG9": {"type": "issue", "title": "Nine", "submitter": "X", "long_link": "https://wg21.link/cwg9"}
}`

func TestFetchPreservesPayloadOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, t.TempDir())
	entries, err := client.Fetch(context.Background())
	require.NoError(t, err)

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"P2R0", "P1", "CWG9"}, ids)
	assert.Equal(t, "Second", entries[0].Doc.Title)
	assert.Equal(t, "X", entries[2].Doc.Submitter)
}

func TestFetchRevalidatesWithETag(t *testing.T) {
	var requests int
	var lastIfNoneMatch string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		lastIfNoneMatch = r.Header.Get("If-None-Match")
		if lastIfNoneMatch == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, t.TempDir())
	ctx := context.Background()

	first, err := client.Fetch(ctx)
	require.NoError(t, err)
	assert.Empty(t, lastIfNoneMatch, "no ETag on the first request")

	// Second fetch revalidates and is served from the cached body.
	second, err := client.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, `"v1"`, lastIfNoneMatch)
	assert.Equal(t, 2, requests)
	assert.Equal(t, first, second)
}

func TestFetchRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, t.TempDir())
	_, err := client.Fetch(context.Background())
	assert.ErrorContains(t, err, "unexpected status")
}

func TestDecodeEntriesRejectsNonObject(t *testing.T) {
	_, err := decodeEntries(strings.NewReader(`[1, 2, 3]`))
	assert.ErrorContains(t, err, "expected object")
}
