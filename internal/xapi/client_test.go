package xapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recapbot/recapbot/internal/types"
)

func TestSearchMapsCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2/tweets/search/recent", r.URL.Path)
		require.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		require.Equal(t, "databases", r.URL.Query().Get("query"))

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{
					"id": "t1", "text": "interesting post", "author_id": "a1",
					"created_at": "2026-08-30T12:00:00Z", "lang": "en",
				},
				{
					"id": "t2", "text": "RT something", "author_id": "a2",
					"created_at": "2026-08-30T12:01:00Z", "lang": "en",
					"referenced_tweets": []map[string]any{{"type": "retweeted"}},
				},
			},
			"includes": map[string]any{
				"users": []map[string]any{
					{"id": "a1", "username": "alice"},
					{"id": "a2", "username": "bob"},
				},
			},
		})
	}))
	defer srv.Close()

	c := New("token", srv.URL, srv.URL)
	candidates, err := c.Search(context.Background(), "databases", 10)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	require.Equal(t, "t1", candidates[0].ID)
	require.Equal(t, "alice", candidates[0].AuthorHandle)
	require.Equal(t, "en", candidates[0].Language)
	require.False(t, candidates[0].IsRepost)

	require.True(t, candidates[1].IsRepost, "retweeted reference marks a repost")
	require.Equal(t, "bob", candidates[1].AuthorHandle)
}

func TestSearchUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New("bad-token", srv.URL, srv.URL)
	_, err := c.Search(context.Background(), "databases", 10)
	require.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestFetchProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2/users/by/username/alice", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"id": "a1", "username": "alice", "name": "Alice", "verified": true,
				"public_metrics": map[string]any{
					"followers_count": 120000, "following_count": 300,
				},
			},
		})
	}))
	defer srv.Close()

	c := New("token", srv.URL, srv.URL)
	profile, err := c.FetchProfile(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, "a1", profile.ID)
	require.Equal(t, 120000, profile.Followers)
	require.True(t, profile.Verified)
}

func TestFetchProfileNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New("token", srv.URL, srv.URL)
	_, err := c.FetchProfile(context.Background(), "ghost")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestReplyUploadsThenPosts(t *testing.T) {
	var uploaded, posted bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1.1/media/upload.json":
			uploaded = true
			require.NoError(t, r.ParseForm())
			require.NotEmpty(t, r.PostForm.Get("media_data"))
			json.NewEncoder(w).Encode(map[string]any{"media_id_string": "m1"})
		case "/2/tweets":
			posted = true
			var body struct {
				Text  string `json:"text"`
				Reply struct {
					InReplyTo string `json:"in_reply_to_tweet_id"`
				} `json:"reply"`
				Media struct {
					MediaIDs []string `json:"media_ids"`
				} `json:"media"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.NotEmpty(t, body.Text)
			require.Equal(t, "t1", body.Reply.InReplyTo)
			require.Equal(t, []string{"m1"}, body.Media.MediaIDs)
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "r1"}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New("token", srv.URL, srv.URL)
	result, err := c.Reply(context.Background(), types.Candidate{ID: "t1"}, []byte("png"))
	require.NoError(t, err)
	require.True(t, uploaded)
	require.True(t, posted)
	require.Equal(t, "r1", result.ReplyID)
	require.GreaterOrEqual(t, result.TemplateIndex, 0)
	require.Less(t, result.TemplateIndex, len(replyTemplates))
}
