// Package store provides the catalog/list storage interfaces and SQLite implementation.
package store

import (
	"context"
	"errors"

	"github.com/aniverse/backend/internal/model"
)

// ErrNotFound is returned when a lookup misses.
var ErrNotFound = errors.New("not found")

// SearchParams holds parameters for text search over the catalog.
type SearchParams struct {
	Query    string
	Media    model.MediaType // empty means both
	Genre    string
	MinScore float64
	Limit    int
}

// FilterParams holds parameters for catalog browsing.
type FilterParams struct {
	Media    model.MediaType
	Genre    string
	Format   string // tv, movie, ova, manga, ...
	MinScore float64
	SortBy   string // score, popularity, title
	Order    string // asc, desc
	Limit    int
	Offset   int
}

// UpsertParams holds parameters for writing a list entry. Nil Status,
// Rating, or Favorite leaves the existing value untouched on update.
type UpsertParams struct {
	UserID   string
	EntryID  int64
	Media    model.MediaType
	Status   *string
	Rating   *float64
	Favorite *bool
}

// ListFilter narrows a user's list query.
type ListFilter struct {
	Media  model.MediaType
	Status string
}

// ListStats summarizes a user's list for one media type.
type ListStats struct {
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"by_status"`
	Favorites     int            `json:"favorites"`
	AverageRating *float64       `json:"average_rating,omitempty"`
}

// CatalogStore is the read-mostly catalog of anime/manga entries.
// Entries are written by the offline ingest job only.
type CatalogStore interface {
	PutEntry(ctx context.Context, e model.CatalogEntry) error
	GetEntry(ctx context.Context, id int64) (*model.CatalogEntry, error)
	Search(ctx context.Context, p SearchParams) ([]model.CatalogEntry, error)
	Filter(ctx context.Context, p FilterParams) ([]model.CatalogEntry, error)
	EachEntry(ctx context.Context, media model.MediaType, fn func(model.CatalogEntry) error) error
}

// ListStore is the per-user watch/read list. Upsert is idempotent:
// repeated identical calls produce the same single row.
type ListStore interface {
	Upsert(ctx context.Context, p UpsertParams) (*model.ListEntry, error)
	GetItem(ctx context.Context, userID string, entryID int64) (*model.ListEntry, error)
	ListItems(ctx context.Context, userID string, f ListFilter) ([]model.ListEntry, error)
	DeleteItem(ctx context.Context, userID string, entryID int64) error
	Stats(ctx context.Context, userID string, media model.MediaType) (*ListStats, error)
}

// UserStore holds registered accounts.
type UserStore interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (*model.User, error)
	GetUserByName(ctx context.Context, username string) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
}
