package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// AuthorCache returns the cached profile for an author, or nil if there is
// no row or the row is older than the freshness window. Stale rows stay in
// place until the next upsert overwrites them.
func (s *Store) AuthorCache(ctx context.Context, authorID string) (*AuthorEntry, error) {
	var e AuthorEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT author_id, handle, name, followers, following, verified, refreshed_at
		FROM author_cache WHERE author_id = ?
	`, authorID).Scan(&e.AuthorID, &e.Handle, &e.Name, &e.Followers, &e.Following,
		&e.Verified, &e.RefreshedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if time.Since(e.RefreshedAt) > authorCacheTTL {
		return nil, nil
	}
	return &e, nil
}

// UpsertAuthorCache inserts or overwrites the cached profile for an author.
func (s *Store) UpsertAuthorCache(ctx context.Context, e AuthorEntry) error {
	if e.RefreshedAt.IsZero() {
		e.RefreshedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO author_cache (author_id, handle, name, followers, following, verified, refreshed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(author_id) DO UPDATE SET
			handle = excluded.handle,
			name = excluded.name,
			followers = excluded.followers,
			following = excluded.following,
			verified = excluded.verified,
			refreshed_at = excluded.refreshed_at
	`, e.AuthorID, e.Handle, e.Name, e.Followers, e.Following, e.Verified, e.RefreshedAt)
	return err
}
