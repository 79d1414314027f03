package store

import "time"

// ReplyRecord is one attempted reply, successful or not. A row is written
// exactly once per terminal cycle outcome and never updated or deleted; the
// candidate ID primary key is the dedup ledger.
type ReplyRecord struct {
	CandidateID        string    `json:"candidate_id"`
	AuthorID           string    `json:"author_id"`
	AuthorHandle       string    `json:"author_handle"`
	Text               string    `json:"text"`
	CandidateCreatedAt time.Time `json:"candidate_created_at"`
	ReplyID            string    `json:"reply_id"` // empty when the attempt failed
	Success            bool      `json:"success"`
	Error              string    `json:"error,omitempty"`
	TaskID             string    `json:"task_id,omitempty"`
	GenerationMs       int64     `json:"generation_ms,omitempty"`
	ArtifactSize       int       `json:"artifact_size,omitempty"`
	TemplateIndex      int       `json:"template_index,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// LimiterState is the rate-limiter half of the singleton state row.
type LimiterState struct {
	DailyCount   int       `json:"daily_count"`
	LastReplyAt  time.Time `json:"last_reply_at"` // zero when no reply has been sent yet
	DailyResetAt time.Time `json:"daily_reset_at"`
}

// BreakerRecord is the circuit-breaker half of the singleton state row.
type BreakerRecord struct {
	State        string    `json:"state"`
	FailureCount int       `json:"failure_count"`
	OpenedAt     time.Time `json:"opened_at"` // zero unless the breaker has opened
}

// BreakerUpdate is a partial update to the breaker fields: nil pointers leave
// the stored value untouched. ClearOpenedAt nulls opened_at and wins over
// OpenedAt when both are set.
type BreakerUpdate struct {
	State         *string
	FailureCount  *int
	OpenedAt      *time.Time
	ClearOpenedAt bool
}

// AuthorEntry is one cached author profile.
type AuthorEntry struct {
	AuthorID    string    `json:"author_id"`
	Handle      string    `json:"handle"`
	Name        string    `json:"name"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	Verified    bool      `json:"verified"`
	RefreshedAt time.Time `json:"refreshed_at"`
}
