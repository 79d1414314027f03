package store

import (
	"context"
	"database/sql"
	"strings"
)

// BreakerState reads the circuit-breaker fields of the singleton state row.
func (s *Store) BreakerState(ctx context.Context) (BreakerRecord, error) {
	var rec BreakerRecord
	var openedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT breaker_state, breaker_failures, breaker_opened_at FROM bot_state WHERE id = 1
	`).Scan(&rec.State, &rec.FailureCount, &openedAt)
	if err != nil {
		return BreakerRecord{}, err
	}
	if openedAt.Valid {
		rec.OpenedAt = openedAt.Time
	}
	return rec, nil
}

// UpdateBreakerState applies a partial update: only the fields supplied in u
// are written, the rest keep their stored values.
func (s *Store) UpdateBreakerState(ctx context.Context, u BreakerUpdate) error {
	var sets []string
	var args []any

	if u.State != nil {
		sets = append(sets, "breaker_state = ?")
		args = append(args, *u.State)
	}
	if u.FailureCount != nil {
		sets = append(sets, "breaker_failures = ?")
		args = append(args, *u.FailureCount)
	}
	if u.ClearOpenedAt {
		sets = append(sets, "breaker_opened_at = NULL")
	} else if u.OpenedAt != nil {
		sets = append(sets, "breaker_opened_at = ?")
		args = append(args, *u.OpenedAt)
	}

	if len(sets) == 0 {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE bot_state SET `+strings.Join(sets, ", ")+` WHERE id = 1`, args...)
	return err
}

// RecordBreakerFailure increments the consecutive failure count without
// changing the state.
func (s *Store) RecordBreakerFailure(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE bot_state SET breaker_failures = breaker_failures + 1 WHERE id = 1`)
	return err
}

// RecordBreakerSuccess resets the failure count, forces the state to closed
// and clears the opened-at timestamp.
func (s *Store) RecordBreakerSuccess(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE bot_state
		SET breaker_state = 'closed', breaker_failures = 0, breaker_opened_at = NULL
		WHERE id = 1
	`)
	return err
}
