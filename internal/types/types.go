package types

import (
	"context"
	"errors"
	"time"
)

// Candidate is a post under consideration for a reply. It is immutable once
// produced by the Poller and lives only for the duration of one cycle.
type Candidate struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	AuthorID     string    `json:"author_id"`
	AuthorHandle string    `json:"author_handle"`
	CreatedAt    time.Time `json:"created_at"`
	Language     string    `json:"language"`
	IsRepost     bool      `json:"is_repost"`
}

// AuthorProfile is the public profile of a candidate's author.
type AuthorProfile struct {
	ID        string `json:"id"`
	Handle    string `json:"handle"`
	Name      string `json:"name"`
	Followers int    `json:"followers"`
	Following int    `json:"following"`
	Verified  bool   `json:"verified"`
}

// GenerationResult is a completed summary artifact from the generation service.
type GenerationResult struct {
	Artifact []byte        `json:"-"`
	TaskID   string        `json:"task_id"`
	Duration time.Duration `json:"duration"`
}

// ReplyResult identifies a posted reply.
type ReplyResult struct {
	ReplyID       string `json:"reply_id"`
	TemplateIndex int    `json:"template_index"`
}

// Sentinel errors shared by capability implementations so callers can
// classify failures without knowing the transport.
var (
	// ErrUnauthorized marks a credential failure. Credentials cannot
	// self-heal, so callers treat this as fatal.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound marks a definitively missing resource; retrying won't help.
	ErrNotFound = errors.New("not found")
)

// Poller fetches candidate posts from the search feed.
type Poller interface {
	Search(ctx context.Context, query string, count int) ([]Candidate, error)
}

// Generator produces a summary artifact for a candidate.
type Generator interface {
	Generate(ctx context.Context, c Candidate) (*GenerationResult, error)
}

// Responder posts the artifact as a reply to the candidate.
type Responder interface {
	Reply(ctx context.Context, c Candidate, artifact []byte) (*ReplyResult, error)
}

// AuthorLookup fetches a public author profile by handle.
type AuthorLookup interface {
	FetchProfile(ctx context.Context, handle string) (*AuthorProfile, error)
}
