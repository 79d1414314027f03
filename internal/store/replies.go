package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicateReply is returned by RecordReply when a record for the
// candidate already exists. A duplicate reaching the record step means the
// dedup filter failed, so callers must not swallow it.
var ErrDuplicateReply = errors.New("reply already recorded for candidate")

// RecordReply inserts one reply record. Fails with ErrDuplicateReply if the
// candidate already has a record, successful or not.
func (s *Store) RecordReply(ctx context.Context, r ReplyRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO replies (candidate_id, author_id, author_handle, text,
			candidate_created_at, reply_id, success, error,
			task_id, generation_ms, artifact_size, template_index, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.CandidateID, r.AuthorID, r.AuthorHandle, r.Text,
		r.CandidateCreatedAt, r.ReplyID, r.Success, r.Error,
		r.TaskID, r.GenerationMs, r.ArtifactSize, r.TemplateIndex, r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateReply, r.CandidateID)
		}
		return err
	}
	return nil
}

// HasReplied checks whether a record exists for the candidate.
func (s *Store) HasReplied(ctx context.Context, candidateID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM replies WHERE candidate_id = ?)`, candidateID).Scan(&exists)
	return exists, err
}

// RepliesForAuthorSince counts records for an author within the past window.
func (s *Store) RepliesForAuthorSince(ctx context.Context, authorID string, window time.Duration) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM replies
		WHERE author_id = ? AND created_at >= ?
	`, authorID, time.Now().Add(-window)).Scan(&count)
	return count, err
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		serr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
