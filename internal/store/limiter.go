package store

import (
	"context"
	"database/sql"
	"time"
)

// LimiterState reads the rate-limiter fields of the singleton state row.
func (s *Store) LimiterState(ctx context.Context) (LimiterState, error) {
	var st LimiterState
	var lastReply sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT daily_count, last_reply_at, daily_reset_at FROM bot_state WHERE id = 1
	`).Scan(&st.DailyCount, &lastReply, &st.DailyResetAt)
	if err != nil {
		return LimiterState{}, err
	}
	if lastReply.Valid {
		st.LastReplyAt = lastReply.Time
	}
	return st, nil
}

// IncrementDailyCount bumps the running daily reply count by one.
func (s *Store) IncrementDailyCount(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE bot_state SET daily_count = daily_count + 1 WHERE id = 1`)
	return err
}

// ResetDailyCountIfDue zeroes the daily count and advances the reset boundary
// to the next midnight, but only when the stored boundary has passed. Safe to
// call every cycle.
func (s *Store) ResetDailyCountIfDue(ctx context.Context) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		UPDATE bot_state SET daily_count = 0, daily_reset_at = ?
		WHERE id = 1 AND daily_reset_at <= ?
	`, nextMidnight(now), now)
	return err
}

// UpdateLastReplyAt records when the most recent reply was posted.
func (s *Store) UpdateLastReplyAt(ctx context.Context, ts time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE bot_state SET last_reply_at = ? WHERE id = 1`, ts)
	return err
}
