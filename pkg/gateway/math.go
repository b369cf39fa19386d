package gateway

import (
	"math"

	"github.com/ainqa-health/aigateway/pkg/model"
)

// CosineSimilarity computes the cosine of the angle between two equal-length
// vectors. Mismatched or empty vectors are caller-input errors.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, model.NewConfigError("cosine similarity requires non-empty vectors")
	}
	if len(a) != len(b) {
		return 0, model.NewConfigError("cosine similarity requires equal-length vectors: %d vs %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, model.NewConfigError("cosine similarity is undefined for zero vectors")
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// AverageEmbeddings computes the element-wise mean of equal-length vectors.
func AverageEmbeddings(vectors [][]float64) ([]float64, error) {
	if len(vectors) == 0 {
		return nil, model.NewConfigError("cannot average zero embeddings")
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, model.NewConfigError("embedding dimension mismatch: vector %d has %d elements, expected %d", i, len(v), dim)
		}
	}

	avg := make([]float64, dim)
	for _, v := range vectors {
		for i, x := range v {
			avg[i] += x
		}
	}
	for i := range avg {
		avg[i] /= float64(len(vectors))
	}
	return avg, nil
}
