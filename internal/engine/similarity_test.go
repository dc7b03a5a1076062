package engine

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical vectors", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal vectors", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite vectors", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1},
		{"scale invariant", []float32{1, 1, 0}, []float32{5, 5, 0}, 1},
		{"mismatched lengths", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 0, 0}, 0},
		{"empty vectors", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-6 {
				t.Errorf("CosineSimilarity() got = %v, want = %v", got, tt.expected)
			}
		})
	}
}

func TestCosineSimilarityClamped(t *testing.T) {
	// Long parallel vectors can drift past 1.0 in floating point.
	a := make([]float32, 512)
	for i := range a {
		a[i] = 0.1
	}
	sim := CosineSimilarity(a, a)
	if sim > 1 || sim < -1 {
		t.Errorf("similarity %v outside [-1, 1]", sim)
	}
}

func TestMergeCentroid(t *testing.T) {
	tests := []struct {
		name     string
		centroid []float32
		emb      []float32
		count    int
		expected []float32
	}{
		{
			name:     "first merge is the mean",
			centroid: []float32{1, 0},
			emb:      []float32{0, 1},
			count:    1,
			expected: []float32{0.5, 0.5},
		},
		{
			name:     "established centroid moves little",
			centroid: []float32{1, 0},
			emb:      []float32{0, 1},
			count:    9,
			expected: []float32{0.9, 0.1},
		},
		{
			name:     "identical embedding is a fixed point",
			centroid: []float32{0.5, 0.5},
			emb:      []float32{0.5, 0.5},
			count:    3,
			expected: []float32{0.5, 0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeCentroid(tt.centroid, tt.emb, tt.count)
			for i := range tt.expected {
				if math.Abs(float64(got[i]-tt.expected[i])) > 1e-6 {
					t.Errorf("mergeCentroid()[%d] got = %v, want = %v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestMergeCentroidRunningMean(t *testing.T) {
	// Merging N embeddings one by one must equal their arithmetic mean.
	embeddings := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
		{1, 1, 1},
	}

	centroid := append([]float32(nil), embeddings[0]...)
	for i := 1; i < len(embeddings); i++ {
		centroid = mergeCentroid(centroid, embeddings[i], i)
	}

	for i := 0; i < 3; i++ {
		var sum float32
		for _, e := range embeddings {
			sum += e[i]
		}
		want := sum / float32(len(embeddings))
		if math.Abs(float64(centroid[i]-want)) > 1e-6 {
			t.Errorf("component %d got = %v, want = %v", i, centroid[i], want)
		}
	}
}
