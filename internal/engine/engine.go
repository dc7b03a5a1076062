package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/your-org/snapvault/internal/models"
	"github.com/your-org/snapvault/internal/observability"
)

// DefaultThreshold is the "same person" cosine similarity cutoff.
const DefaultThreshold = 0.6

// Scope restricts which identities a match may consider.
type Scope int

const (
	// ScopeAll considers every identity. Used on the upload path, since an
	// uploaded face may belong to an already-registered user.
	ScopeAll Scope = iota
	// ScopeOrphans considers only unclaimed identities. Used at
	// registration: a claimed identity must never be claimed again.
	ScopeOrphans
)

// Tx exposes identity mutations inside one serialized match transaction.
type Tx interface {
	// BestMatch returns the in-scope identity whose centroid is most
	// similar to the embedding, with its cosine similarity. Returns
	// (nil, 0, nil) when no candidate exists in scope.
	BestMatch(ctx context.Context, embedding []float32, scope Scope) (*models.Identity, float64, error)
	UpdateIdentity(ctx context.Context, ident *models.Identity) error
	InsertIdentity(ctx context.Context, ident *models.Identity) error
}

// Store provides serialized compare-then-write access to the identity set.
type Store interface {
	// InMatchTx runs fn in a transaction that holds the match lock. Two
	// concurrent calls never interleave their scan and write: without
	// this, two mutually-matching embeddings arriving together would each
	// miss the other and fragment into two clusters.
	InMatchTx(ctx context.Context, fn func(tx Tx) error) error
}

// Result describes the outcome of one match-or-create decision.
type Result struct {
	IdentityID uuid.UUID
	// Created is true when no candidate reached the threshold and a fresh
	// identity was inserted.
	Created bool
	// Similarity of the winning candidate; zero when Created.
	Similarity float64
}

// Engine matches face embeddings against the identity store, merging
// matches into running centroids and creating clusters for new faces.
type Engine struct {
	store     Store
	dim       int
	threshold float64
}

func New(store Store, dim int, threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{store: store, dim: dim, threshold: threshold}
}

// Dim returns the embedding dimension the engine was configured with.
func (e *Engine) Dim() int {
	return e.dim
}

// MatchOrCreate resolves one embedding to an identity under the match
// lock. On a match (best candidate similarity >= threshold) the centroid
// is merged as (old·n + emb)/(n+1) and sample_count incremented; owner,
// when non-nil, claims the identity in the same write. On no match a new
// identity is inserted with the embedding as its centroid.
//
// Embedding extraction must happen before this call: only the store
// compare/merge/persist step runs under the lock.
func (e *Engine) MatchOrCreate(ctx context.Context, embedding []float32, scope Scope, owner *uuid.UUID) (Result, error) {
	if err := e.checkDim(embedding); err != nil {
		return Result{}, err
	}

	var res Result
	err := e.store.InMatchTx(ctx, func(tx Tx) error {
		r, err := e.MatchOrCreateTx(ctx, tx, embedding, scope, owner)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// MatchOrCreateTx is MatchOrCreate for callers that already hold a match
// transaction. Registration runs it in the same transaction that inserts
// the user row, so both commit or roll back together.
func (e *Engine) MatchOrCreateTx(ctx context.Context, tx Tx, embedding []float32, scope Scope, owner *uuid.UUID) (Result, error) {
	if err := e.checkDim(embedding); err != nil {
		return Result{}, err
	}

	ident, sim, err := tx.BestMatch(ctx, embedding, scope)
	if err != nil {
		return Result{}, fmt.Errorf("best match: %w", err)
	}

	if ident != nil && sim >= e.threshold {
		if len(ident.Centroid) != e.dim {
			return Result{}, &DimensionError{Got: len(ident.Centroid), Want: e.dim}
		}

		ident.Centroid = mergeCentroid(ident.Centroid, embedding, ident.SampleCount)
		ident.SampleCount++
		if owner != nil {
			ident.OwnerUserID = owner
		}
		if err := tx.UpdateIdentity(ctx, ident); err != nil {
			return Result{}, fmt.Errorf("merge identity: %w", err)
		}

		observability.IdentitiesMerged.Inc()
		observability.MatchSimilarity.Observe(sim)
		if owner != nil {
			observability.IdentitiesClaimed.Inc()
		}
		slog.Debug("embedding merged",
			"identity", ident.ID,
			"similarity", sim,
			"sample_count", ident.SampleCount,
			"claimed", owner != nil,
		)
		return Result{IdentityID: ident.ID, Similarity: sim}, nil
	}

	fresh := &models.Identity{
		ID:          uuid.New(),
		Centroid:    append([]float32(nil), embedding...),
		SampleCount: 1,
		OwnerUserID: owner,
	}
	if err := tx.InsertIdentity(ctx, fresh); err != nil {
		return Result{}, fmt.Errorf("insert identity: %w", err)
	}

	observability.IdentitiesCreated.Inc()
	slog.Debug("identity created", "identity", fresh.ID, "claimed", owner != nil)
	return Result{IdentityID: fresh.ID, Created: true}, nil
}

func (e *Engine) checkDim(embedding []float32) error {
	if len(embedding) != e.dim {
		return &DimensionError{Got: len(embedding), Want: e.dim}
	}
	return nil
}
