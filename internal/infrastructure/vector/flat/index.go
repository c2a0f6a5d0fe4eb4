// Package flat implements an exact nearest-neighbor index over statute chunk
// embeddings. Search is a full scan by squared L2 distance: the corpus is
// small and exhaustive search keeps results exact and reproducible.
package flat

import (
	"fmt"
	"sort"

	"github.com/lexgo/statute-consult/internal/core/domain"
)

// Index holds position-aligned vectors and chunk metadata. The two slices
// are a matched pair and are only ever built or loaded together; the index
// is read-only afterwards and safe for concurrent Search.
type Index struct {
	dim     int
	vectors []float32 // row-major, len == dim*len(chunks)
	chunks  []domain.StatuteChunk
}

// Build constructs an index from embeddings and their chunks. Every vector
// must share one dimension and pair with exactly one chunk at the same
// position.
func Build(vectors [][]float32, chunks []domain.StatuteChunk) (*Index, error) {
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("vectors/chunks mismatch: %d vs %d", len(vectors), len(chunks))
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty index input")
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("zero-dimension embedding")
	}

	flatVectors := make([]float32, 0, dim*len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d dimension %d, expected %d", i, len(v), dim)
		}
		flatVectors = append(flatVectors, v...)
	}

	stored := make([]domain.StatuteChunk, len(chunks))
	copy(stored, chunks)

	return &Index{dim: dim, vectors: flatVectors, chunks: stored}, nil
}

func (ix *Index) Len() int { return len(ix.chunks) }

func (ix *Index) Dimension() int { return ix.dim }

// Search returns the k entries nearest to query, ascending by squared L2
// distance, ties broken by position. k is capped at the corpus size.
func (ix *Index) Search(query []float32, k int) ([]domain.SearchResult, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(query), ix.dim)
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if k > len(ix.chunks) {
		k = len(ix.chunks)
	}

	distances := make([]float64, len(ix.chunks))
	for pos := range ix.chunks {
		row := ix.vectors[pos*ix.dim : (pos+1)*ix.dim]
		var sum float64
		for j, q := range query {
			d := float64(row[j]) - float64(q)
			sum += d * d
		}
		distances[pos] = sum
	}

	order := make([]int, len(distances))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return distances[order[a]] < distances[order[b]]
	})

	out := make([]domain.SearchResult, 0, k)
	for _, pos := range order[:k] {
		chunk := ix.chunks[pos]
		out = append(out, domain.SearchResult{
			Content:  chunk.Content,
			Filename: chunk.Filename,
			LawName:  chunk.LawName,
			Score:    domain.ScoreFromDistance(distances[pos]),
			Distance: distances[pos],
		})
	}
	return out, nil
}
