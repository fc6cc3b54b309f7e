package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aniverse/backend/internal/model"
)

// Upsert writes a list entry for (user, entry). A missing row is
// created with defaults; an existing row keeps any field whose
// parameter is nil. The write is a single-key point operation, safe
// to retry.
func (s *SQLiteStore) Upsert(ctx context.Context, p UpsertParams) (*model.ListEntry, error) {
	if p.Status != nil && !model.ValidStatuses[*p.Status] {
		return nil, fmt.Errorf("invalid status %q", *p.Status)
	}
	if p.Rating != nil && !model.ValidRating(*p.Rating) {
		return nil, fmt.Errorf("rating %.1f out of range [1,10]", *p.Rating)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	status := "planned"
	if p.Status != nil {
		status = *p.Status
	}
	favorite := 0
	if p.Favorite != nil && *p.Favorite {
		favorite = 1
	}
	media := p.Media
	if media == "" {
		media = model.MediaAnime
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO list_entries (user_id, entry_id, media, status, rating, is_favorite, added_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, entry_id) DO UPDATE SET
		   status      = COALESCE(?, list_entries.status),
		   rating      = COALESCE(?, list_entries.rating),
		   is_favorite = COALESCE(?, list_entries.is_favorite),
		   updated_at  = ?`,
		p.UserID, p.EntryID, string(media), status, p.Rating, favorite, now, now,
		p.Status, p.Rating, boolPtrToInt(p.Favorite), now)
	if err != nil {
		return nil, fmt.Errorf("upsert list entry: %w", err)
	}

	return s.GetItem(ctx, p.UserID, p.EntryID)
}

func (s *SQLiteStore) GetItem(ctx context.Context, userID string, entryID int64) (*model.ListEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, entry_id, media, status, rating, is_favorite, added_at, updated_at
		 FROM list_entries WHERE user_id = ? AND entry_id = ?`, userID, entryID)
	e, err := scanListEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *SQLiteStore) ListItems(ctx context.Context, userID string, f ListFilter) ([]model.ListEntry, error) {
	where := []string{"user_id = ?"}
	args := []interface{}{userID}

	if f.Media != "" {
		where = append(where, "media = ?")
		args = append(args, string(f.Media))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}

	query := fmt.Sprintf(`
		SELECT user_id, entry_id, media, status, rating, is_favorite, added_at, updated_at
		FROM list_entries WHERE %s
		ORDER BY updated_at DESC`, strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.ListEntry
	for rows.Next() {
		e, err := scanListEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) DeleteItem(ctx context.Context, userID string, entryID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM list_entries WHERE user_id = ? AND entry_id = ?`, userID, entryID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats returns per-status counts, favorites, and the average rating
// for one media type of a user's list.
func (s *SQLiteStore) Stats(ctx context.Context, userID string, media model.MediaType) (*ListStats, error) {
	st := &ListStats{ByStatus: map[string]int{}}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM list_entries
		 WHERE user_id = ? AND media = ? GROUP BY status`, userID, string(media))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		st.ByStatus[status] = count
		st.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM list_entries WHERE user_id = ? AND media = ? AND is_favorite = 1`,
		userID, string(media)).Scan(&st.Favorites)

	var avg sql.NullFloat64
	s.db.QueryRowContext(ctx,
		`SELECT AVG(rating) FROM list_entries WHERE user_id = ? AND media = ? AND rating IS NOT NULL`,
		userID, string(media)).Scan(&avg)
	if avg.Valid {
		st.AverageRating = &avg.Float64
	}

	return st, nil
}

func scanListEntry(row scanner) (model.ListEntry, error) {
	var e model.ListEntry
	var media, addedAt, updatedAt string
	var rating sql.NullFloat64
	var favorite int

	err := row.Scan(&e.UserID, &e.EntryID, &media, &e.Status, &rating, &favorite, &addedAt, &updatedAt)
	if err != nil {
		return e, err
	}

	e.Media = model.MediaType(media)
	if rating.Valid {
		v := rating.Float64
		e.Rating = &v
	}
	e.Favorite = favorite == 1
	e.AddedAt, _ = time.Parse(time.RFC3339, addedAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return e, nil
}

func boolPtrToInt(b *bool) *int {
	if b == nil {
		return nil
	}
	n := 0
	if *b {
		n = 1
	}
	return &n
}
