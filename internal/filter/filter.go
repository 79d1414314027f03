// Package filter narrows a cycle's candidate list to at most one eligible
// post through four ordered stages: content, deduplication, audience size,
// rate limits. Stages are ordered cheapest first so a candidate that fails
// early never costs a database read or a network lookup.
package filter

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/recapbot/recapbot/internal/retry"
	"github.com/recapbot/recapbot/internal/store"
	"github.com/recapbot/recapbot/internal/types"
)

// authorWindow is the rolling window for the per-author reply limit.
const authorWindow = 24 * time.Hour

// defaultLookupPolicy bounds the author profile lookup on a cache miss.
var defaultLookupPolicy = retry.Policy{
	MaxAttempts: 3,
	Strategy:    retry.Exponential,
	BaseDelay:   time.Second,
	MaxDelay:    4 * time.Second,
}

// Store is the slice of the persistent store the pipeline reads and writes.
type Store interface {
	HasReplied(ctx context.Context, candidateID string) (bool, error)
	RepliesForAuthorSince(ctx context.Context, authorID string, window time.Duration) (int, error)
	LimiterState(ctx context.Context) (store.LimiterState, error)
	ResetDailyCountIfDue(ctx context.Context) error
	AuthorCache(ctx context.Context, authorID string) (*store.AuthorEntry, error)
	UpsertAuthorCache(ctx context.Context, e store.AuthorEntry) error
}

// Config holds the pipeline thresholds.
type Config struct {
	MinLength          int
	Language           string
	MaxAge             time.Duration
	MinFollowers       int
	MaxDailyReplies    int
	MinGap             time.Duration
	MaxPerAuthorPerDay int
}

// Pipeline qualifies candidates against the store and the author lookup.
type Pipeline struct {
	store       Store
	lookup      types.AuthorLookup
	cfg         Config
	lookupRetry retry.Policy
}

// New creates a pipeline.
func New(st Store, lookup types.AuthorLookup, cfg Config) *Pipeline {
	return &Pipeline{store: st, lookup: lookup, cfg: cfg, lookupRetry: defaultLookupPolicy}
}

// Select returns the first candidate that survives all four stages, or nil
// when none does (which is a normal outcome, not an error). The error return
// is reserved for store failures, which the caller treats as critical.
func (p *Pipeline) Select(ctx context.Context, candidates []types.Candidate) (*types.Candidate, *Stats, error) {
	stats := newStats()
	stats.Considered = len(candidates)

	for i := range candidates {
		c := candidates[i]

		if reason := p.checkContent(c); reason != "" {
			stats.reject(StageContent, reason)
			continue
		}

		reason, err := p.checkDedup(ctx, c)
		if err != nil {
			return nil, stats, err
		}
		if reason != "" {
			stats.reject(StageDedup, reason)
			continue
		}

		reason, err = p.checkAudience(ctx, c)
		if err != nil {
			return nil, stats, err
		}
		if reason != "" {
			stats.reject(StageAudience, reason)
			continue
		}

		reason, err = p.checkRateLimits(ctx, c)
		if err != nil {
			return nil, stats, err
		}
		if reason != "" {
			stats.reject(StageRateLimits, reason)
			continue
		}

		stats.SelectedID = c.ID
		return &c, stats, nil
	}

	return nil, stats, nil
}

// checkContent applies the cheap, purely local checks. Age is measured
// against the clock at filter time, not at search time.
func (p *Pipeline) checkContent(c types.Candidate) string {
	if len(c.Text) < p.cfg.MinLength {
		return ReasonTooShort
	}
	if p.cfg.Language != "" && c.Language != p.cfg.Language {
		return ReasonWrongLanguage
	}
	if c.IsRepost {
		return ReasonRepost
	}
	if p.cfg.MaxAge > 0 && time.Since(c.CreatedAt) > p.cfg.MaxAge {
		return ReasonTooOld
	}
	return ""
}

// checkDedup rejects candidates already replied to, and authors already at
// their rolling daily quota.
func (p *Pipeline) checkDedup(ctx context.Context, c types.Candidate) (string, error) {
	replied, err := p.store.HasReplied(ctx, c.ID)
	if err != nil {
		return "", err
	}
	if replied {
		return ReasonAlreadyReplied, nil
	}

	count, err := p.store.RepliesForAuthorSince(ctx, c.AuthorID, authorWindow)
	if err != nil {
		return "", err
	}
	if count >= p.cfg.MaxPerAuthorPerDay {
		return ReasonAuthorLimit, nil
	}
	return "", nil
}

// checkAudience compares the author's follower count to the threshold, going
// to the network only on a cache miss. An unresolved lookup fails closed: an
// unknown audience never passes. The fresh profile is cached even when it
// causes rejection, so the next cycle's check is a cache hit.
func (p *Pipeline) checkAudience(ctx context.Context, c types.Candidate) (string, error) {
	entry, err := p.store.AuthorCache(ctx, c.AuthorID)
	if err != nil {
		return "", err
	}

	if entry == nil {
		profile, lerr := retry.Do(ctx, p.lookupRetry, "author lookup",
			func(ctx context.Context) (*types.AuthorProfile, error) {
				prof, err := p.lookup.FetchProfile(ctx, c.AuthorHandle)
				if err != nil {
					if errors.Is(err, types.ErrNotFound) {
						return nil, retry.Permanent(err)
					}
					return nil, err
				}
				return prof, nil
			})
		if lerr != nil {
			log.Printf("[filter] author lookup for @%s failed, rejecting: %v", c.AuthorHandle, lerr)
			return ReasonLookupFailed, nil
		}

		authorID := profile.ID
		if authorID == "" {
			authorID = c.AuthorID
		}
		entry = &store.AuthorEntry{
			AuthorID:  authorID,
			Handle:    profile.Handle,
			Name:      profile.Name,
			Followers: profile.Followers,
			Following: profile.Following,
			Verified:  profile.Verified,
		}
		if err := p.store.UpsertAuthorCache(ctx, *entry); err != nil {
			return "", err
		}
	}

	if entry.Followers < p.cfg.MinFollowers {
		return ReasonBelowThreshold, nil
	}
	return "", nil
}

// checkRateLimits enforces the global daily quota, the minimum gap between
// replies and the per-author quota. The daily counter is reset first when
// its boundary has passed; the reset is idempotent.
func (p *Pipeline) checkRateLimits(ctx context.Context, c types.Candidate) (string, error) {
	if err := p.store.ResetDailyCountIfDue(ctx); err != nil {
		return "", err
	}

	st, err := p.store.LimiterState(ctx)
	if err != nil {
		return "", err
	}

	if st.DailyCount >= p.cfg.MaxDailyReplies {
		return ReasonDailyLimit, nil
	}
	if !st.LastReplyAt.IsZero() && time.Since(st.LastReplyAt) < p.cfg.MinGap {
		return ReasonGapTooShort, nil
	}

	count, err := p.store.RepliesForAuthorSince(ctx, c.AuthorID, authorWindow)
	if err != nil {
		return "", err
	}
	if count >= p.cfg.MaxPerAuthorPerDay {
		return ReasonAuthorLimit, nil
	}
	return "", nil
}
