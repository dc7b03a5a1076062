package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 4

func unit(i int) []float32 {
	v := make([]float32, testDim)
	v[i] = 1
	return v
}

func TestMatchOrCreateNewIdentity(t *testing.T) {
	store := newMemStore()
	eng := New(store, testDim, DefaultThreshold)

	res, err := eng.MatchOrCreate(context.Background(), unit(0), ScopeAll, nil)
	require.NoError(t, err)
	assert.True(t, res.Created)

	idents := store.snapshot()
	require.Len(t, idents, 1)
	assert.Equal(t, 1, idents[0].SampleCount)
	assert.Nil(t, idents[0].OwnerUserID)
	assert.Equal(t, unit(0), idents[0].Centroid)
}

func TestMatchOrCreateMergesAboveThreshold(t *testing.T) {
	store := newMemStore()
	eng := New(store, testDim, DefaultThreshold)
	ctx := context.Background()

	first, err := eng.MatchOrCreate(ctx, []float32{1, 0, 0, 0}, ScopeAll, nil)
	require.NoError(t, err)

	// Similar enough to merge (cosine ≈ 0.995).
	second, err := eng.MatchOrCreate(ctx, []float32{1, 0.1, 0, 0}, ScopeAll, nil)
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.IdentityID, second.IdentityID)
	assert.Greater(t, second.Similarity, DefaultThreshold)

	idents := store.snapshot()
	require.Len(t, idents, 1)
	assert.Equal(t, 2, idents[0].SampleCount)
	// Centroid is the mean of the two embeddings.
	assert.InDelta(t, 1.0, idents[0].Centroid[0], 1e-6)
	assert.InDelta(t, 0.05, idents[0].Centroid[1], 1e-6)
}

func TestMatchOrCreateBelowThresholdCreates(t *testing.T) {
	store := newMemStore()
	eng := New(store, testDim, DefaultThreshold)
	ctx := context.Background()

	_, err := eng.MatchOrCreate(ctx, unit(0), ScopeAll, nil)
	require.NoError(t, err)

	// Orthogonal: similarity 0, well below the cutoff.
	res, err := eng.MatchOrCreate(ctx, unit(1), ScopeAll, nil)
	require.NoError(t, err)
	assert.True(t, res.Created)

	assert.Len(t, store.snapshot(), 2)
}

func TestMatchOrCreateThresholdBoundary(t *testing.T) {
	// An exact-threshold candidate merges; just under it does not.
	tests := []struct {
		name      string
		threshold float64
		emb       []float32
		wantMerge bool
	}{
		{"exactly at threshold merges", 1.0, []float32{1, 0, 0, 0}, true},
		{"below threshold creates", 0.8, []float32{1, 1, 0, 0}, false}, // cosine ≈ 0.707
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			eng := New(store, testDim, tt.threshold)
			ctx := context.Background()

			_, err := eng.MatchOrCreate(ctx, []float32{1, 0, 0, 0}, ScopeAll, nil)
			require.NoError(t, err)

			res, err := eng.MatchOrCreate(ctx, tt.emb, ScopeAll, nil)
			require.NoError(t, err)
			assert.Equal(t, !tt.wantMerge, res.Created)
		})
	}
}

func TestMatchOrCreateDimensionMismatch(t *testing.T) {
	store := newMemStore()
	eng := New(store, testDim, DefaultThreshold)

	_, err := eng.MatchOrCreate(context.Background(), make([]float32, testDim+1), ScopeAll, nil)

	var dimErr *DimensionError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, testDim+1, dimErr.Got)
	assert.Equal(t, testDim, dimErr.Want)
	assert.Empty(t, store.snapshot(), "nothing may be written on a dimension mismatch")
}

func TestMatchOrCreateOrphanScopeSkipsClaimed(t *testing.T) {
	store := newMemStore()
	eng := New(store, testDim, DefaultThreshold)
	ctx := context.Background()

	// Claim an identity for one user.
	userA := uuid.New()
	res, err := eng.MatchOrCreate(ctx, unit(0), ScopeOrphans, &userA)
	require.NoError(t, err)
	require.True(t, res.Created)

	// A second user with the same face must not steal it: the claimed
	// identity is out of scope, so a fresh one is created.
	userB := uuid.New()
	res2, err := eng.MatchOrCreate(ctx, unit(0), ScopeOrphans, &userB)
	require.NoError(t, err)
	assert.True(t, res2.Created)
	assert.NotEqual(t, res.IdentityID, res2.IdentityID)

	assert.Len(t, store.snapshot(), 2)
}

func TestMatchOrCreateClaimsOrphanOnMerge(t *testing.T) {
	store := newMemStore()
	eng := New(store, testDim, DefaultThreshold)
	ctx := context.Background()

	// Orphan accumulated from uploads.
	orphan, err := eng.MatchOrCreate(ctx, unit(0), ScopeAll, nil)
	require.NoError(t, err)

	userID := uuid.New()
	res, err := eng.MatchOrCreate(ctx, unit(0), ScopeOrphans, &userID)
	require.NoError(t, err)

	assert.False(t, res.Created)
	assert.Equal(t, orphan.IdentityID, res.IdentityID)

	idents := store.snapshot()
	require.Len(t, idents, 1)
	require.NotNil(t, idents[0].OwnerUserID)
	assert.Equal(t, userID, *idents[0].OwnerUserID)
	assert.Equal(t, 2, idents[0].SampleCount)
}

func TestMatchOrCreateUploadNeverClaims(t *testing.T) {
	store := newMemStore()
	eng := New(store, testDim, DefaultThreshold)
	ctx := context.Background()

	userID := uuid.New()
	_, err := eng.MatchOrCreate(ctx, unit(0), ScopeOrphans, &userID)
	require.NoError(t, err)

	// Upload path matches the claimed identity without touching ownership.
	res, err := eng.MatchOrCreate(ctx, unit(0), ScopeAll, nil)
	require.NoError(t, err)
	assert.False(t, res.Created)

	idents := store.snapshot()
	require.Len(t, idents, 1)
	require.NotNil(t, idents[0].OwnerUserID)
	assert.Equal(t, userID, *idents[0].OwnerUserID)
}

func TestMatchOrCreateSecondClaimConflicts(t *testing.T) {
	store := newMemStore()
	eng := New(store, testDim, DefaultThreshold)
	ctx := context.Background()

	userID := uuid.New()
	_, err := eng.MatchOrCreate(ctx, unit(0), ScopeOrphans, &userID)
	require.NoError(t, err)

	// Same user claiming a different face trips the one-identity rule.
	_, err = eng.MatchOrCreate(ctx, unit(1), ScopeOrphans, &userID)
	assert.True(t, errors.Is(err, ErrOwnerConflict))
}

func TestMatchOrCreateConcurrentConvergence(t *testing.T) {
	// N concurrent uploads of the same face must fold into one identity
	// with sample count N. Without serialization they would race the scan
	// and fragment into several clusters.
	const n = 32

	store := newMemStore()
	eng := New(store, testDim, DefaultThreshold)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.MatchOrCreate(context.Background(), []float32{1, 0, 0, 0}, ScopeAll, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	idents := store.snapshot()
	require.Len(t, idents, 1, "concurrent identical embeddings fragmented")
	assert.Equal(t, n, idents[0].SampleCount)
}
