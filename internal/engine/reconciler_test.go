package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileNewUserFaceCount(t *testing.T) {
	tests := []struct {
		name       string
		embeddings [][]float32
		wantCount  int
	}{
		{"no faces", nil, 0},
		{"two faces", [][]float32{unit(0), unit(1)}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			rec := NewReconciler(New(store, testDim, DefaultThreshold))

			err := store.InMatchTx(context.Background(), func(tx Tx) error {
				_, err := rec.ReconcileNewUser(context.Background(), tx, uuid.New(), tt.embeddings)
				return err
			})

			var faceErr *FaceCountError
			require.ErrorAs(t, err, &faceErr)
			assert.Equal(t, tt.wantCount, faceErr.Detected)
			assert.Empty(t, store.snapshot())
		})
	}
}

func TestReconcileNewUserClaimsOrphan(t *testing.T) {
	store := newMemStore()
	eng := New(store, testDim, DefaultThreshold)
	rec := NewReconciler(eng)
	ctx := context.Background()

	// Uploads before registration left an orphan cluster of this face.
	orphan, err := eng.MatchOrCreate(ctx, []float32{1, 0, 0, 0}, ScopeAll, nil)
	require.NoError(t, err)
	_, err = eng.MatchOrCreate(ctx, []float32{1, 0.05, 0, 0}, ScopeAll, nil)
	require.NoError(t, err)

	userID := uuid.New()
	var res Result
	err = store.InMatchTx(ctx, func(tx Tx) error {
		r, err := rec.ReconcileNewUser(ctx, tx, userID, [][]float32{{1, 0.02, 0, 0}})
		res = r
		return err
	})
	require.NoError(t, err)

	assert.False(t, res.Created)
	assert.Equal(t, orphan.IdentityID, res.IdentityID)

	idents := store.snapshot()
	require.Len(t, idents, 1)
	require.NotNil(t, idents[0].OwnerUserID)
	assert.Equal(t, userID, *idents[0].OwnerUserID)
	assert.Equal(t, 3, idents[0].SampleCount)
}

func TestReconcileNewUserFreshIdentity(t *testing.T) {
	store := newMemStore()
	rec := NewReconciler(New(store, testDim, DefaultThreshold))
	ctx := context.Background()

	userID := uuid.New()
	var res Result
	err := store.InMatchTx(ctx, func(tx Tx) error {
		r, err := rec.ReconcileNewUser(ctx, tx, userID, [][]float32{unit(2)})
		res = r
		return err
	})
	require.NoError(t, err)

	assert.True(t, res.Created)
	idents := store.snapshot()
	require.Len(t, idents, 1)
	require.NotNil(t, idents[0].OwnerUserID)
	assert.Equal(t, userID, *idents[0].OwnerUserID)
	assert.Equal(t, 1, idents[0].SampleCount)
}
