// Package retrieval provides the semantic snippet matcher used to augment
// generation with reference material.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

const (
	DefaultTopK      = 3
	DefaultThreshold = float32(0.8)
)

// Record is one stored reference snippet. Records are immutable; the index is
// append-only.
type Record struct {
	ID        string
	Category  string
	Content   string
	Embedding []float32
}

// Result is a matched record with its cosine similarity to the query.
type Result struct {
	Record
	Similarity float32
}

// Index matches query vectors against stored records by cosine similarity.
// Backed by an in-memory chromem collection; effectively read-only after
// initialization, so queries need no coordination beyond the append lock.
type Index struct {
	mu         sync.Mutex
	collection *chromem.Collection
	next       int
}

// NewIndex creates an empty in-memory index.
func NewIndex() (*Index, error) {
	db := chromem.NewDB()
	// Records always carry explicit embeddings, so the collection-level
	// embedding func must never be reached.
	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("index has no embedder; add records with embeddings")
	}
	collection, err := db.GetOrCreateCollection("reference", nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Index{collection: collection}, nil
}

// Add appends records to the index. Each record must carry an embedding.
func (ix *Index) Add(ctx context.Context, recs ...Record) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, rec := range recs {
		if len(rec.Embedding) == 0 {
			return fmt.Errorf("record %s has no embedding", rec.ID)
		}
		err := ix.collection.AddDocument(ctx, chromem.Document{
			ID:        rec.ID,
			Content:   rec.Content,
			Embedding: rec.Embedding,
			Metadata: map[string]string{
				"category": rec.Category,
				"ordinal":  strconv.Itoa(ix.next),
			},
		})
		if err != nil {
			return fmt.Errorf("add record %s: %w", rec.ID, err)
		}
		ix.next++
	}
	return nil
}

// Count returns the number of stored records.
func (ix *Index) Count() int { return ix.collection.Count() }

// Query returns records scoring strictly above threshold against the query
// vector, sorted by descending similarity with ties broken by insertion order,
// capped at topK. An empty result is the normal outcome when nothing clears
// the threshold; callers proceed without augmentation.
func (ix *Index) Query(ctx context.Context, embedding []float32, topK int, threshold float32) ([]Result, error) {
	return ix.QueryCategory(ctx, embedding, topK, threshold, "")
}

// QueryCategory is Query restricted to records tagged with the given category.
// An empty category matches everything.
func (ix *Index) QueryCategory(ctx context.Context, embedding []float32, topK int, threshold float32, category string) ([]Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if threshold < 0 {
		threshold = DefaultThreshold
	}

	count := ix.collection.Count()
	if count == 0 {
		return nil, nil
	}

	// Fetch every candidate and apply the strict threshold and the stable tie
	// break here; the collection's own ordering leaves ties unspecified.
	raw, err := ix.collection.QueryEmbedding(ctx, embedding, count, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	type candidate struct {
		res     Result
		ordinal int
	}
	candidates := make([]candidate, 0, len(raw))
	for _, r := range raw {
		if r.Similarity <= threshold {
			continue
		}
		if category != "" && r.Metadata["category"] != category {
			continue
		}
		ord, _ := strconv.Atoi(r.Metadata["ordinal"])
		candidates = append(candidates, candidate{
			res: Result{
				Record: Record{
					ID:        r.ID,
					Category:  r.Metadata["category"],
					Content:   r.Content,
					Embedding: r.Embedding,
				},
				Similarity: r.Similarity,
			},
			ordinal: ord,
		})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ordinal < candidates[j].ordinal })
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].res.Similarity > candidates[j].res.Similarity })

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = c.res
	}
	return results, nil
}
