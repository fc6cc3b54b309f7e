// Package recommend turns a user's rated list into personalized
// catalog recommendations via the embedding index.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aniverse/backend/internal/embedding"
	"github.com/aniverse/backend/internal/logger"
	"github.com/aniverse/backend/internal/model"
	"github.com/aniverse/backend/internal/similarity"
	"github.com/aniverse/backend/internal/store"
)

// ErrNoRatings means the user has no usable rating signal yet.
var ErrNoRatings = errors.New("no rated entries: rate some titles first")

// ratingMidpoint is the neutral point of the 1-10 scale. Ratings above
// it pull the profile toward a title, ratings below push away.
const ratingMidpoint = 5.5

// favoriteWeight stands in for unrated favorites when building the
// profile vector.
const favoriteWeight = 2.0

// Combined rerank weights, tuned against catalog-scale data: raw
// similarity dominates, catalog score and popularity break near-ties.
const (
	weightSimilarity = 0.6
	weightScore      = 0.3
	weightPopularity = 0.1
)

// Engine aggregates list ratings into a profile vector and queries the
// similarity index. It only reads shared state, so a single Engine is
// safe for concurrent requests.
type Engine struct {
	log     *logger.Logger
	index   *similarity.Index
	catalog store.CatalogStore
	lists   store.ListStore
}

func NewEngine(log *logger.Logger, index *similarity.Index, catalog store.CatalogStore, lists store.ListStore) *Engine {
	return &Engine{
		log:     log.With("component", "recommend"),
		index:   index,
		catalog: catalog,
		lists:   lists,
	}
}

// Recommend returns up to limit entries similar to the user's taste
// profile, excluding anything already on their list regardless of
// status. Fails with ErrNoRatings when the user has no rated entries
// (or all ratings sit exactly on the midpoint).
func (e *Engine) Recommend(ctx context.Context, userID string, media model.MediaType, limit int) ([]model.Recommendation, error) {
	if limit <= 0 {
		limit = 10
	}

	items, err := e.lists.ListItems(ctx, userID, store.ListFilter{Media: media})
	if err != nil {
		return nil, fmt.Errorf("load list: %w", err)
	}

	profile, seeds, err := e.profileVector(ctx, items)
	if err != nil {
		return nil, err
	}

	owned := make(map[int64]bool, len(items))
	for _, it := range items {
		owned[it.EntryID] = true
	}

	// The index holds both media types and owned entries are only
	// skipped after the scan, so rank everything and stop at limit;
	// any smaller budget can be eaten by cross-media discards.
	matches := e.index.FindSimilar(profile, similarity.NoExclusion, e.index.Len())

	var recs []model.Recommendation
	for _, m := range matches {
		if owned[m.ID] {
			continue
		}
		entry, err := e.catalog.GetEntry(ctx, m.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue // stale index entry
			}
			return nil, err
		}
		if media != "" && entry.Media != media {
			continue
		}
		recs = append(recs, model.Recommendation{
			Entry:      *entry,
			Similarity: m.Similarity,
			Combined:   combinedScore(m.Similarity, entry),
			Reason:     e.reason(entry, seeds),
		})
		if len(recs) == limit {
			break
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Combined != recs[j].Combined {
			return recs[i].Combined > recs[j].Combined
		}
		return recs[i].Entry.ID < recs[j].Entry.ID
	})

	e.log.Debug("recommendations computed", "user", userID, "seeds", len(seeds), "results", len(recs))
	return recs, nil
}

// Similar returns up to limit entries nearest to the given catalog
// entry. When userID is non-empty, entries already on that user's
// list are filtered out.
func (e *Engine) Similar(ctx context.Context, id int64, userID string, limit int) ([]model.Recommendation, error) {
	if limit <= 0 {
		limit = 10
	}

	owned := map[int64]bool{}
	if userID != "" {
		items, err := e.lists.ListItems(ctx, userID, store.ListFilter{})
		if err != nil {
			return nil, fmt.Errorf("load list: %w", err)
		}
		for _, it := range items {
			owned[it.EntryID] = true
		}
	}

	matches := e.index.SimilarTo(id, limit+len(owned))
	var recs []model.Recommendation
	for _, m := range matches {
		if owned[m.ID] {
			continue
		}
		entry, err := e.catalog.GetEntry(ctx, m.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		recs = append(recs, model.Recommendation{
			Entry:      *entry,
			Similarity: m.Similarity,
			Combined:   combinedScore(m.Similarity, entry),
		})
		if len(recs) == limit {
			break
		}
	}
	return recs, nil
}

// seed is one list entry that contributed to the profile vector.
type seed struct {
	entry  *model.CatalogEntry
	weight float64
}

// profileVector combines the embeddings of rated entries into one
// taste vector, weighted by distance from the rating midpoint and
// normalized by the total absolute weight. Unrated favorites add a
// fixed positive weight, but the gate is ratings: without at least
// one off-midpoint rating the profile fails with ErrNoRatings.
func (e *Engine) profileVector(ctx context.Context, items []model.ListEntry) (embedding.Vector, []seed, error) {
	var profile embedding.Vector
	var seeds []seed
	var totalWeight float64
	var hasRatingSignal bool

	for _, it := range items {
		var w float64
		switch {
		case it.Rating != nil:
			w = *it.Rating - ratingMidpoint
		case it.Favorite:
			w = favoriteWeight
		default:
			continue
		}
		if w == 0 {
			continue
		}
		if it.Rating != nil {
			hasRatingSignal = true
		}

		vec := e.index.Vector(it.EntryID)
		if vec == nil {
			continue
		}

		if profile == nil {
			profile = make(embedding.Vector, len(vec))
		}
		for i := range vec {
			profile[i] += float32(w) * vec[i]
		}
		totalWeight += abs(w)

		entry, err := e.catalog.GetEntry(ctx, it.EntryID)
		if err == nil && w > 0 {
			seeds = append(seeds, seed{entry: entry, weight: w})
		}
	}

	if !hasRatingSignal || profile == nil || totalWeight == 0 {
		return nil, nil, ErrNoRatings
	}

	for i := range profile {
		profile[i] /= float32(totalWeight)
	}

	sort.SliceStable(seeds, func(i, j int) bool { return seeds[i].weight > seeds[j].weight })
	return profile, seeds, nil
}

// reason names the highest-weighted seed sharing a genre with the
// candidate. Best effort: an empty string is fine.
func (e *Engine) reason(candidate *model.CatalogEntry, seeds []seed) string {
	for _, s := range seeds {
		var shared []string
		for _, g := range candidate.Genres {
			if s.entry.HasGenre(g) {
				shared = append(shared, g)
			}
		}
		if len(shared) > 0 {
			return fmt.Sprintf("Because you liked %s (%s)", s.entry.Title, strings.Join(shared, ", "))
		}
	}
	if len(seeds) > 0 {
		return fmt.Sprintf("Because you liked %s", seeds[0].entry.Title)
	}
	return ""
}

// combinedScore blends similarity with catalog score and popularity
// rank so near-ties resolve toward well-regarded titles.
func combinedScore(sim float64, entry *model.CatalogEntry) float64 {
	var score float64
	if entry.Score != nil {
		score = *entry.Score / 10
	}

	pop := 0.5
	if entry.Popularity > 0 {
		if entry.Popularity <= 1000 {
			pop = 1 - float64(entry.Popularity)/2000
		} else {
			pop = 0.5 - float64(entry.Popularity-1000)/20000
			if pop < 0.1 {
				pop = 0.1
			}
		}
	}

	return weightSimilarity*sim + weightScore*score + weightPopularity*pop
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
