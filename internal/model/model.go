// Package model defines the core catalog and list data types.
package model

import "time"

// MediaType distinguishes anime from manga catalog entries.
type MediaType string

const (
	MediaAnime MediaType = "anime"
	MediaManga MediaType = "manga"
)

// CatalogEntry is one anime or manga title with its metadata.
// Entries are immutable at serving time; they are written by the
// offline ingest job and only read afterwards.
type CatalogEntry struct {
	ID         int64     `json:"mal_id"`
	Media      MediaType `json:"media"`
	Title      string    `json:"title"`
	Format     string    `json:"media_type,omitempty"` // tv, movie, ova, manga, novel, ...
	Genres     []string  `json:"genres,omitempty"`
	Score      *float64  `json:"score,omitempty"`
	Popularity int       `json:"popularity,omitempty"`
	Episodes   int       `json:"episodes,omitempty"`
	Synopsis   string    `json:"synopsis,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
}

// HasGenre reports whether the entry carries the given genre
// (case-sensitive; genres are normalized at ingest time).
func (e *CatalogEntry) HasGenre(genre string) bool {
	for _, g := range e.Genres {
		if g == genre {
			return true
		}
	}
	return false
}

// ListEntry is one row of a user's watch/read list. At most one entry
// exists per (user, catalog entry) pair; writes overwrite in place.
type ListEntry struct {
	UserID    string    `json:"-"`
	EntryID   int64     `json:"entry_id"`
	Media     MediaType `json:"media"`
	Status    string    `json:"status"`
	Rating    *float64  `json:"rating,omitempty"`
	Favorite  bool      `json:"is_favorite"`
	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// ChatTurn is one message of the session-scoped conversation window.
type ChatTurn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ActionResult reports the outcome of one chat-driven list action.
type ActionResult struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	EntryID int64  `json:"entry_id,omitempty"`
	Title   string `json:"title,omitempty"`
}

// Recommendation pairs a catalog entry with its similarity to the
// query (a single title or a user's profile vector) and a best-effort
// human-readable reason.
type Recommendation struct {
	Entry      CatalogEntry `json:"entry"`
	Similarity float64      `json:"similarity"`
	Combined   float64      `json:"combined_score"`
	Reason     string       `json:"reason,omitempty"`
}

// ValidStatuses are the allowed list statuses. "watching" doubles as
// "reading" for manga entries.
var ValidStatuses = map[string]bool{
	"watching":  true,
	"completed": true,
	"planned":   true,
	"dropped":   true,
	"on_hold":   true,
}

// ValidRating reports whether r is inside the 1-10 rating scale.
func ValidRating(r float64) bool {
	return r >= 1 && r <= 10
}
