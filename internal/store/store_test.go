package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "recapbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestRecordReplyDedup(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()

	rec := ReplyRecord{
		CandidateID:  "tweet-1",
		AuthorID:     "author-1",
		AuthorHandle: "alice",
		Text:         "some long post about databases",
		ReplyID:      "reply-1",
		Success:      true,
	}
	require.NoError(t, s.RecordReply(ctx, rec))

	// A second record for the same candidate must fail, even with different
	// contents: the candidate id is the dedup ledger.
	rec.Success = false
	rec.Error = "Generation failed: boom"
	err := s.RecordReply(ctx, rec)
	require.ErrorIs(t, err, ErrDuplicateReply)

	replied, err := s.HasReplied(ctx, "tweet-1")
	require.NoError(t, err)
	require.True(t, replied)

	replied, err = s.HasReplied(ctx, "tweet-2")
	require.NoError(t, err)
	require.False(t, replied)
}

func TestFailedAttemptsCountAsReplied(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordReply(ctx, ReplyRecord{
		CandidateID:  "tweet-9",
		AuthorID:     "author-9",
		AuthorHandle: "bob",
		Text:         "post",
		Success:      false,
		Error:        "Reply failed: 500",
	}))

	replied, err := s.HasReplied(ctx, "tweet-9")
	require.NoError(t, err)
	require.True(t, replied)
}

func TestRepliesForAuthorSince(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.RecordReply(ctx, ReplyRecord{
		CandidateID: "t1", AuthorID: "a1", AuthorHandle: "alice", Text: "x",
		Success: true, CreatedAt: now.Add(-2 * time.Hour),
	}))
	require.NoError(t, s.RecordReply(ctx, ReplyRecord{
		CandidateID: "t2", AuthorID: "a1", AuthorHandle: "alice", Text: "y",
		Success: true, CreatedAt: now.Add(-30 * time.Hour),
	}))
	require.NoError(t, s.RecordReply(ctx, ReplyRecord{
		CandidateID: "t3", AuthorID: "a2", AuthorHandle: "bob", Text: "z",
		Success: true, CreatedAt: now.Add(-time.Hour),
	}))

	count, err := s.RepliesForAuthorSince(ctx, "a1", 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, count, "the 30h-old reply is outside the window")

	count, err = s.RepliesForAuthorSince(ctx, "a2", 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestLimiterStateLifecycle(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()

	st, err := s.LimiterState(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, st.DailyCount)
	require.True(t, st.LastReplyAt.IsZero(), "no reply sent yet")
	require.True(t, st.DailyResetAt.After(time.Now()), "reset boundary seeded in the future")

	require.NoError(t, s.IncrementDailyCount(ctx))
	require.NoError(t, s.IncrementDailyCount(ctx))

	ts := time.Now().Truncate(time.Second)
	require.NoError(t, s.UpdateLastReplyAt(ctx, ts))

	st, err = s.LimiterState(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, st.DailyCount)
	require.WithinDuration(t, ts, st.LastReplyAt, time.Second)
}

func TestResetDailyCountIfDue(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()

	require.NoError(t, s.IncrementDailyCount(ctx))

	// Boundary still in the future: the reset must be a no-op.
	require.NoError(t, s.ResetDailyCountIfDue(ctx))
	st, err := s.LimiterState(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, st.DailyCount)

	// Force the boundary into the past, then the reset fires and the
	// boundary advances to the next midnight.
	_, err = s.db.Exec(`UPDATE bot_state SET daily_reset_at = ? WHERE id = 1`,
		time.Now().Add(-time.Hour))
	require.NoError(t, err)

	require.NoError(t, s.ResetDailyCountIfDue(ctx))
	st, err = s.LimiterState(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, st.DailyCount)
	require.True(t, st.DailyResetAt.After(time.Now()))

	// Idempotent: calling again changes nothing.
	require.NoError(t, s.ResetDailyCountIfDue(ctx))
	again, err := s.LimiterState(ctx)
	require.NoError(t, err)
	require.Equal(t, st.DailyResetAt.Unix(), again.DailyResetAt.Unix())
}

func TestBreakerStateUpdates(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()

	rec, err := s.BreakerState(ctx)
	require.NoError(t, err)
	require.Equal(t, "closed", rec.State)
	require.Equal(t, 0, rec.FailureCount)
	require.True(t, rec.OpenedAt.IsZero())

	require.NoError(t, s.RecordBreakerFailure(ctx))
	require.NoError(t, s.RecordBreakerFailure(ctx))

	rec, err = s.BreakerState(ctx)
	require.NoError(t, err)
	require.Equal(t, "closed", rec.State, "recording a failure does not change state")
	require.Equal(t, 2, rec.FailureCount)

	// Partial update: only the supplied fields change.
	open := "open"
	openedAt := time.Now().Truncate(time.Second)
	require.NoError(t, s.UpdateBreakerState(ctx, BreakerUpdate{State: &open, OpenedAt: &openedAt}))

	rec, err = s.BreakerState(ctx)
	require.NoError(t, err)
	require.Equal(t, "open", rec.State)
	require.Equal(t, 2, rec.FailureCount, "failure count untouched by partial update")
	require.WithinDuration(t, openedAt, rec.OpenedAt, time.Second)

	require.NoError(t, s.RecordBreakerSuccess(ctx))
	rec, err = s.BreakerState(ctx)
	require.NoError(t, err)
	require.Equal(t, "closed", rec.State)
	require.Equal(t, 0, rec.FailureCount)
	require.True(t, rec.OpenedAt.IsZero(), "opened_at cleared on success")
}

func TestBreakerClearOpenedAt(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()

	openedAt := time.Now()
	require.NoError(t, s.UpdateBreakerState(ctx, BreakerUpdate{OpenedAt: &openedAt}))
	require.NoError(t, s.UpdateBreakerState(ctx, BreakerUpdate{ClearOpenedAt: true}))

	rec, err := s.BreakerState(ctx)
	require.NoError(t, err)
	require.True(t, rec.OpenedAt.IsZero())
}

func TestAuthorCacheTTL(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()

	entry, err := s.AuthorCache(ctx, "a1")
	require.NoError(t, err)
	require.Nil(t, entry, "missing author is absent")

	require.NoError(t, s.UpsertAuthorCache(ctx, AuthorEntry{
		AuthorID: "a1", Handle: "alice", Name: "Alice", Followers: 120000,
		Following: 500, Verified: true,
	}))

	entry, err = s.AuthorCache(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, 120000, entry.Followers)

	// Age the row past the freshness window: it must read as absent.
	require.NoError(t, s.UpsertAuthorCache(ctx, AuthorEntry{
		AuthorID: "a1", Handle: "alice", Name: "Alice", Followers: 120000,
		Following: 500, Verified: true,
		RefreshedAt: time.Now().Add(-25 * time.Hour),
	}))

	entry, err = s.AuthorCache(ctx, "a1")
	require.NoError(t, err)
	require.Nil(t, entry, "stale row treated as absent")

	// A fresh upsert overwrites the stale row and it reads again.
	require.NoError(t, s.UpsertAuthorCache(ctx, AuthorEntry{
		AuthorID: "a1", Handle: "alice", Name: "Alice", Followers: 130000,
		Following: 500, Verified: true,
	}))

	entry, err = s.AuthorCache(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, 130000, entry.Followers)
}

func TestSingletonRowSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recapbot.db")
	ctx := context.Background()

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.IncrementDailyCount(ctx))
	require.NoError(t, s.Close())

	// Reopening must not reseed the singleton row.
	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()

	st, err := s.LimiterState(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, st.DailyCount)
}
