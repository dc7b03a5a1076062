package engine

import "math"

// CosineSimilarity computes dot(a,b) / (|a|·|b|) for two embeddings.
// Returns 0 for mismatched lengths or zero vectors, clamped to [-1, 1]
// to absorb floating point drift.
func CosineSimilarity(a, b []float32) float64 {
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

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim
}

// mergeCentroid folds one embedding into a running centroid of count samples:
// (centroid·count + emb) / (count+1).
func mergeCentroid(centroid, emb []float32, count int) []float32 {
	n := float32(count)
	merged := make([]float32, len(centroid))
	for i := range centroid {
		merged[i] = (centroid[i]*n + emb[i]) / (n + 1)
	}
	return merged
}
