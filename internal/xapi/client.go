// Package xapi is a thin X API v2 client implementing the Poller, Responder
// and AuthorLookup capabilities. It owns per-call timeouts; resilience
// (retry, circuit breaking, rate limits) lives with the caller.
package xapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/recapbot/recapbot/internal/types"
)

const (
	defaultBaseURL   = "https://api.twitter.com"
	defaultUploadURL = "https://upload.twitter.com"
	callTimeout      = 30 * time.Second
)

// Client talks to the X API with bearer-token auth.
type Client struct {
	httpClient *http.Client
	baseURL    string
	uploadURL  string
	token      string
}

// New creates a client. Empty URLs fall back to the public API endpoints.
func New(token, baseURL, uploadURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if uploadURL == "" {
		uploadURL = defaultUploadURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: callTimeout},
		baseURL:    baseURL,
		uploadURL:  uploadURL,
		token:      token,
	}
}

type searchResponse struct {
	Data []struct {
		ID               string    `json:"id"`
		Text             string    `json:"text"`
		AuthorID         string    `json:"author_id"`
		CreatedAt        time.Time `json:"created_at"`
		Lang             string    `json:"lang"`
		ReferencedTweets []struct {
			Type string `json:"type"`
		} `json:"referenced_tweets"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"users"`
	} `json:"includes"`
}

// Search fetches recent posts matching the query.
func (c *Client) Search(ctx context.Context, query string, count int) ([]types.Candidate, error) {
	params := url.Values{
		"query":        {query},
		"max_results":  {fmt.Sprint(count)},
		"tweet.fields": {"created_at,lang,author_id,referenced_tweets"},
		"expansions":   {"author_id"},
		"user.fields":  {"username"},
	}

	var resp searchResponse
	err := c.get(ctx, c.baseURL+"/2/tweets/search/recent?"+params.Encode(), &resp)
	if err != nil {
		return nil, fmt.Errorf("search recent tweets: %w", err)
	}

	handles := make(map[string]string, len(resp.Includes.Users))
	for _, u := range resp.Includes.Users {
		handles[u.ID] = u.Username
	}

	candidates := make([]types.Candidate, 0, len(resp.Data))
	for _, t := range resp.Data {
		isRepost := false
		for _, ref := range t.ReferencedTweets {
			if ref.Type == "retweeted" {
				isRepost = true
				break
			}
		}
		candidates = append(candidates, types.Candidate{
			ID:           t.ID,
			Text:         t.Text,
			AuthorID:     t.AuthorID,
			AuthorHandle: handles[t.AuthorID],
			CreatedAt:    t.CreatedAt,
			Language:     t.Lang,
			IsRepost:     isRepost,
		})
	}
	return candidates, nil
}

type userResponse struct {
	Data struct {
		ID            string `json:"id"`
		Username      string `json:"username"`
		Name          string `json:"name"`
		Verified      bool   `json:"verified"`
		PublicMetrics struct {
			Followers int `json:"followers_count"`
			Following int `json:"following_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

// FetchProfile looks up a public profile by handle.
func (c *Client) FetchProfile(ctx context.Context, handle string) (*types.AuthorProfile, error) {
	params := url.Values{"user.fields": {"public_metrics,verified"}}

	var resp userResponse
	err := c.get(ctx, c.baseURL+"/2/users/by/username/"+url.PathEscape(handle)+"?"+params.Encode(), &resp)
	if err != nil {
		return nil, fmt.Errorf("fetch profile @%s: %w", handle, err)
	}
	if resp.Data.ID == "" {
		return nil, fmt.Errorf("fetch profile @%s: %w", handle, types.ErrNotFound)
	}

	return &types.AuthorProfile{
		ID:        resp.Data.ID,
		Handle:    resp.Data.Username,
		Name:      resp.Data.Name,
		Followers: resp.Data.PublicMetrics.Followers,
		Following: resp.Data.PublicMetrics.Following,
		Verified:  resp.Data.Verified,
	}, nil
}

// Reply uploads the artifact as media and posts it as a reply to the
// candidate, with a randomly chosen caption template.
func (c *Client) Reply(ctx context.Context, cand types.Candidate, artifact []byte) (*types.ReplyResult, error) {
	mediaID, err := c.uploadMedia(ctx, artifact)
	if err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}

	text, templateIndex := pickTemplate()
	body := map[string]any{
		"text":  text,
		"reply": map[string]any{"in_reply_to_tweet_id": cand.ID},
		"media": map[string]any{"media_ids": []string{mediaID}},
	}

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.post(ctx, c.baseURL+"/2/tweets", body, &resp); err != nil {
		return nil, fmt.Errorf("create reply: %w", err)
	}

	return &types.ReplyResult{ReplyID: resp.Data.ID, TemplateIndex: templateIndex}, nil
}

// uploadMedia pushes image bytes through the v1.1 media upload endpoint.
func (c *Client) uploadMedia(ctx context.Context, artifact []byte) (string, error) {
	form := url.Values{"media_data": {base64.StdEncoding.EncodeToString(artifact)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.uploadURL+"/1.1/media/upload.json", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.MediaIDString == "" {
		return "", fmt.Errorf("upload succeeded but no media id returned")
	}
	return resp.MediaIDString, nil
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, rawURL string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// do executes the request and maps credential and not-found statuses to the
// shared sentinels so callers can classify without reading response bodies.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("status %d: %w", resp.StatusCode, types.ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return types.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
