package memory

import "math"

// Cosine returns the cosine similarity of a and b in [-1, 1].
//
// The measure is only defined for two vectors of equal non-zero length with
// non-zero magnitude; every other combination returns 0 rather than an error.
// A record with a nil embedding therefore scores 0 against any query and is
// dropped by any positive similarity threshold.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
