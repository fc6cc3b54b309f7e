// Package ingest implements the offline jobs: loading the catalog
// from CSV dumps and rebuilding the embedding index.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/aniverse/backend/internal/embedding"
	"github.com/aniverse/backend/internal/logger"
	"github.com/aniverse/backend/internal/model"
	"github.com/aniverse/backend/internal/similarity"
	"github.com/aniverse/backend/internal/store"
)

// minSynopsisLen filters out entries whose synopsis is too short to
// embed meaningfully; they stay in the catalog but get no vector.
const minSynopsisLen = 20

// maxSynopsisLen truncates embedding text so one outlier synopsis
// cannot dominate the token budget.
const maxSynopsisLen = 1000

// LoadCSV reads a MyAnimeList-style CSV dump into the catalog. The
// column mapping follows the public MAL dataset exports: id, title,
// media_type, genres, mean, popularity, num_episodes, synopsis,
// main_picture_medium.
func LoadCSV(ctx context.Context, log *logger.Logger, catalog store.CatalogStore, path string, media model.MediaType, limit int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}

	field := func(rec []string, names ...string) string {
		for _, n := range names {
			if i, ok := col[n]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
		}
		return ""
	}

	count := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn("skipping malformed row", "err", err)
			continue
		}

		id, err := strconv.ParseInt(field(rec, "id", "mal_id"), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		title := field(rec, "title")
		if title == "" {
			continue
		}

		entry := model.CatalogEntry{
			ID:       id,
			Media:    media,
			Title:    title,
			Format:   field(rec, "media_type", "type"),
			Genres:   parseGenres(field(rec, "genres")),
			Synopsis: field(rec, "synopsis"),
			ImageURL: field(rec, "main_picture_medium", "image_url"),
		}
		if v, err := strconv.ParseFloat(field(rec, "mean", "score"), 64); err == nil && v > 0 {
			entry.Score = &v
		}
		if v, err := strconv.Atoi(field(rec, "popularity")); err == nil {
			entry.Popularity = v
		}
		if v, err := strconv.Atoi(field(rec, "num_episodes", "episodes", "chapters")); err == nil {
			entry.Episodes = v
		}

		if err := catalog.PutEntry(ctx, entry); err != nil {
			return count, fmt.Errorf("store entry %d: %w", id, err)
		}
		count++
		if limit > 0 && count >= limit {
			break
		}
	}

	log.Info("catalog loaded", "path", path, "media", string(media), "entries", count)
	return count, nil
}

// parseGenres accepts both JSON-ish list dumps (['Action', 'Drama'])
// and comma-separated strings.
func parseGenres(raw string) []string {
	raw = strings.Trim(raw, "[]")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var genres []string
	for _, p := range parts {
		g := strings.Trim(strings.TrimSpace(p), "'\"")
		if g != "" {
			genres = append(genres, g)
		}
	}
	return genres
}

// EmbeddingText builds the text fed to the embedding model for one
// catalog entry: title, genre labels, and a truncated synopsis.
func EmbeddingText(e model.CatalogEntry) string {
	parts := []string{e.Title}
	if len(e.Genres) > 0 {
		parts = append(parts, "Genres: "+strings.Join(e.Genres, ", "))
	}
	if e.Synopsis != "" {
		synopsis := e.Synopsis
		if len(synopsis) > maxSynopsisLen {
			// Back up to a rune boundary so the cut never emits
			// invalid UTF-8.
			cut := maxSynopsisLen
			for cut > 0 && !utf8.RuneStart(synopsis[cut]) {
				cut--
			}
			synopsis = synopsis[:cut]
		}
		parts = append(parts, synopsis)
	}
	return strings.Join(parts, " | ")
}

// BuildIndex regenerates the embedding index wholesale from the
// catalog. Entries with a missing or too-short synopsis are skipped;
// the Similarity Engine simply never returns them.
func BuildIndex(ctx context.Context, log *logger.Logger, catalog store.CatalogStore, embedder embedding.Embedder, indexPath string) (int, error) {
	w, err := similarity.NewWriter(indexPath)
	if err != nil {
		return 0, err
	}
	defer w.Close()

	count := 0
	skipped := 0
	err = catalog.EachEntry(ctx, "", func(e model.CatalogEntry) error {
		if len(e.Synopsis) < minSynopsisLen {
			skipped++
			return nil
		}
		vec, err := embedder.Embed(ctx, EmbeddingText(e))
		if err != nil {
			return fmt.Errorf("embed entry %d: %w", e.ID, err)
		}
		if err := w.Put(e.ID, vec); err != nil {
			return fmt.Errorf("index entry %d: %w", e.ID, err)
		}
		count++
		if count%500 == 0 {
			log.Info("index build progress", "embedded", count)
		}
		return nil
	})
	if err != nil {
		return count, err
	}

	log.Info("index built", "path", indexPath, "vectors", count, "skipped", skipped)
	return count, nil
}
