// Package similarity implements nearest-neighbor search over the
// precomputed catalog embedding index.
package similarity

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/aniverse/backend/internal/embedding"
)

var vectorsBucket = []byte("vectors")

// Match is one nearest-neighbor hit.
type Match struct {
	ID         int64
	Similarity float64
}

// Index holds the catalog embedding vectors in memory for exhaustive
// scans. It is loaded once at startup and never mutated, so concurrent
// reads need no locking. Entries without a vector are simply absent.
type Index struct {
	vectors map[int64]embedding.Vector
	ids     []int64 // sorted, for deterministic scan order
}

// Load reads every vector from the bbolt file at path. A missing file
// yields an empty index rather than an error, so serving degrades
// gracefully when the offline build has not run yet.
func Load(path string) (*Index, error) {
	idx := &Index{vectors: map[int64]embedding.Vector{}}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return idx, nil
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer db.Close()

	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(vectorsBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if len(k) != 8 {
				return fmt.Errorf("malformed key length %d", len(k))
			}
			id := int64(binary.BigEndian.Uint64(k))
			idx.vectors[id] = decodeVector(v)
			idx.ids = append(idx.ids, id)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}

	sort.Slice(idx.ids, func(i, j int) bool { return idx.ids[i] < idx.ids[j] })
	return idx, nil
}

// NewFromMap builds an in-memory index; used by tests and the builder.
func NewFromMap(vectors map[int64]embedding.Vector) *Index {
	idx := &Index{vectors: vectors}
	for id := range vectors {
		idx.ids = append(idx.ids, id)
	}
	sort.Slice(idx.ids, func(i, j int) bool { return idx.ids[i] < idx.ids[j] })
	return idx
}

// Len reports the number of indexed vectors.
func (idx *Index) Len() int { return len(idx.vectors) }

// Vector returns the embedding for id, or nil when the entry has none.
func (idx *Index) Vector(id int64) embedding.Vector {
	return idx.vectors[id]
}

// NoExclusion is the excludeID to pass when every entry qualifies.
// Catalog ids are positive, so it can never collide.
const NoExclusion int64 = -1

// FindSimilar returns the up-to-k nearest entries to the query vector
// by cosine similarity, in descending order, ties broken by ascending
// id. excludeID is never returned (pass NoExclusion to keep all). An
// empty index or nil query yields an empty result.
func (idx *Index) FindSimilar(query embedding.Vector, excludeID int64, k int) []Match {
	if len(query) == 0 || len(idx.vectors) == 0 || k <= 0 {
		return nil
	}

	matches := make([]Match, 0, len(idx.ids))
	for _, id := range idx.ids {
		if id == excludeID {
			continue
		}
		sim := embedding.CosineSimilarity(query, idx.vectors[id])
		matches = append(matches, Match{ID: id, Similarity: sim})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// SimilarTo is FindSimilar keyed by an indexed entry instead of a raw
// vector. An id with no vector yields an empty result.
func (idx *Index) SimilarTo(id int64, k int) []Match {
	return idx.FindSimilar(idx.vectors[id], id, k)
}

// --- Writer ---

// Writer rebuilds the on-disk index wholesale; the offline builder is
// its only caller.
type Writer struct {
	db *bolt.DB
}

// NewWriter opens (creating if needed) the index file for rebuild and
// drops any previous vectors.
func NewWriter(path string) (*Writer, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open index for write: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(vectorsBucket) != nil {
			if err := tx.DeleteBucket(vectorsBucket); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucket(vectorsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("reset index: %w", err)
	}
	return &Writer{db: db}, nil
}

// Put stores the vector for one catalog entry.
func (w *Writer) Put(id int64, vec embedding.Vector) error {
	return w.db.Update(func(tx *bolt.Tx) error {
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, uint64(id))
		return tx.Bucket(vectorsBucket).Put(key, encodeVector(vec))
	})
}

func (w *Writer) Close() error {
	return w.db.Close()
}

func encodeVector(v embedding.Vector) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) embedding.Vector {
	v := make(embedding.Vector, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
