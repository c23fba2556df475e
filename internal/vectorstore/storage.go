package vectorstore

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"notebookrag/internal/domain"
)

// Opener creates the index for one session. The dimension is fixed for the
// index lifetime; name identifies the session for backends that keep data
// outside the process.
type Opener func(name string, dimension int) (domain.VectorIndex, error)

// ValidateBatch checks a batch before anything is stored, so a rejected batch
// leaves the index untouched.
func ValidateBatch(dimension int, vectors []domain.Vector, chunks []domain.Chunk) error {
	if len(vectors) != len(chunks) {
		return domain.ConfigError("%d vectors for %d chunks", len(vectors), len(chunks))
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return fmt.Errorf("vector %d: %w", i, &domain.DimensionError{Want: dimension, Got: len(v)})
		}
	}
	return nil
}

// ValidateQuery checks the search arguments.
func ValidateQuery(dimension int, query domain.Vector, topK int) error {
	if topK <= 0 {
		return domain.ConfigError("top_k must be positive, got %d", topK)
	}
	if len(query) != dimension {
		return fmt.Errorf("query: %w", &domain.DimensionError{Want: dimension, Got: len(query)})
	}
	return nil
}

// L2 returns the Euclidean distance between two vectors of equal length.
func L2(a, b domain.Vector) float64 {
	sum := 0.0
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Rank returns the ordinals of the topK smallest distances, nearest first.
// Equal distances keep insertion order.
func Rank(distances []float64, topK int) []int {
	idxs := make([]int, len(distances))
	for i := range idxs {
		idxs[i] = i
	}
	slices.SortStableFunc(idxs, func(a, b int) int {
		return cmp.Compare(distances[a], distances[b])
	})
	if topK < len(idxs) {
		idxs = idxs[:topK]
	}
	return idxs
}

// Normalize scales v to unit length in place. Zero vectors are left as is.
func Normalize(v domain.Vector) domain.Vector {
	sum := 0.0
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}
