package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/aniverse/backend/internal/model"
)

func (s *SQLiteStore) PutEntry(ctx context.Context, e model.CatalogEntry) error {
	var genresJSON *string
	if len(e.Genres) > 0 {
		b, _ := json.Marshal(e.Genres)
		str := string(b)
		genresJSON = &str
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO catalog (id, media, title, format, genres, score, popularity, episodes, synopsis, image_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   media = excluded.media, title = excluded.title, format = excluded.format,
		   genres = excluded.genres, score = excluded.score, popularity = excluded.popularity,
		   episodes = excluded.episodes, synopsis = excluded.synopsis, image_url = excluded.image_url`,
		e.ID, string(e.Media), e.Title, e.Format, genresJSON, e.Score,
		e.Popularity, e.Episodes, e.Synopsis, e.ImageURL)
	if err != nil {
		return fmt.Errorf("put catalog entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetEntry(ctx context.Context, id int64) (*model.CatalogEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, media, title, format, genres, score, popularity, episodes, synopsis, image_url
		 FROM catalog WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Search matches the query against titles and synopses. Title hits
// rank above synopsis-only hits; within a tier, catalog score decides.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]model.CatalogEntry, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}

	like := "%" + p.Query + "%"
	where := []string{"(title LIKE ? OR synopsis LIKE ?)"}
	args := []interface{}{like, like}

	if p.Media != "" {
		where = append(where, "media = ?")
		args = append(args, string(p.Media))
	}
	if p.Genre != "" {
		where = append(where, "genres LIKE ?")
		args = append(args, "%\""+p.Genre+"\"%")
	}
	if p.MinScore > 0 {
		where = append(where, "score >= ?")
		args = append(args, p.MinScore)
	}

	// Over-fetch so the title-first resort below has room to work.
	query := fmt.Sprintf(`
		SELECT id, media, title, format, genres, score, popularity, episodes, synopsis, image_url
		FROM catalog WHERE %s
		ORDER BY score DESC
		LIMIT ?`, strings.Join(where, " AND "))
	args = append(args, limit*3)

	entries, err := s.queryEntries(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(p.Query)
	titleHit := func(e model.CatalogEntry) bool {
		return strings.Contains(strings.ToLower(e.Title), q)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		hi, hj := titleHit(entries[i]), titleHit(entries[j])
		if hi != hj {
			return hi
		}
		return false
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *SQLiteStore) Filter(ctx context.Context, p FilterParams) ([]model.CatalogEntry, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	where := []string{"1=1"}
	var args []interface{}

	if p.Media != "" {
		where = append(where, "media = ?")
		args = append(args, string(p.Media))
	}
	if p.Genre != "" {
		where = append(where, "genres LIKE ?")
		args = append(args, "%\""+p.Genre+"\"%")
	}
	if p.Format != "" {
		where = append(where, "format = ?")
		args = append(args, p.Format)
	}
	if p.MinScore > 0 {
		where = append(where, "score >= ?")
		args = append(args, p.MinScore)
	}

	sortBy := "score"
	switch p.SortBy {
	case "popularity", "title":
		sortBy = p.SortBy
	}
	order := "DESC"
	if strings.EqualFold(p.Order, "asc") || (p.SortBy == "popularity" && p.Order == "") {
		// popularity is a rank: lower is more popular
		order = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT id, media, title, format, genres, score, popularity, episodes, synopsis, image_url
		FROM catalog WHERE %s
		ORDER BY %s %s, id ASC
		LIMIT ? OFFSET ?`, strings.Join(where, " AND "), sortBy, order)
	args = append(args, limit, p.Offset)

	return s.queryEntries(ctx, query, args...)
}

// EachEntry streams catalog entries of one media type (or all, when
// media is empty) to fn; used by the offline index builder.
func (s *SQLiteStore) EachEntry(ctx context.Context, media model.MediaType, fn func(model.CatalogEntry) error) error {
	query := `SELECT id, media, title, format, genres, score, popularity, episodes, synopsis, image_url
	          FROM catalog`
	var args []interface{}
	if media != "" {
		query += ` WHERE media = ?`
		args = append(args, string(media))
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) queryEntries(ctx context.Context, query string, args ...interface{}) ([]model.CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.CatalogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (model.CatalogEntry, error) {
	var e model.CatalogEntry
	var media string
	var format, genresJSON, synopsis, imageURL sql.NullString
	var score sql.NullFloat64
	var popularity, episodes sql.NullInt64

	err := row.Scan(&e.ID, &media, &e.Title, &format, &genresJSON,
		&score, &popularity, &episodes, &synopsis, &imageURL)
	if err != nil {
		return e, err
	}

	e.Media = model.MediaType(media)
	if format.Valid {
		e.Format = format.String
	}
	if genresJSON.Valid {
		json.Unmarshal([]byte(genresJSON.String), &e.Genres)
	}
	if score.Valid {
		v := score.Float64
		e.Score = &v
	}
	if popularity.Valid {
		e.Popularity = int(popularity.Int64)
	}
	if episodes.Valid {
		e.Episodes = int(episodes.Int64)
	}
	if synopsis.Valid {
		e.Synopsis = synopsis.String
	}
	if imageURL.Valid {
		e.ImageURL = imageURL.String
	}
	return e, nil
}
