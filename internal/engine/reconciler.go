package engine

import (
	"context"

	"github.com/google/uuid"
)

// Reconciler binds newly registered users to the identity set: either by
// claiming an orphan cluster accumulated from earlier group-photo uploads,
// or by creating a fresh identity owned by the user.
type Reconciler struct {
	engine *Engine
}

func NewReconciler(engine *Engine) *Reconciler {
	return &Reconciler{engine: engine}
}

// ReconcileNewUser resolves a registering user's profile embeddings
// against orphan identities. Exactly one face must have been detected in
// the profile picture; anything else is a FaceCountError and the caller
// must abort registration and discard the uploaded file.
//
// On an orphan match the identity is claimed and merged in one write, so
// every photo link already pointing at it now belongs to the user with no
// data copy. On no match a new identity is created directly owned.
//
// Runs on an open match transaction: the caller inserts the user row in
// the same transaction, keeping user and identity mutations atomic.
func (r *Reconciler) ReconcileNewUser(ctx context.Context, tx Tx, userID uuid.UUID, embeddings [][]float32) (Result, error) {
	if len(embeddings) != 1 {
		return Result{}, &FaceCountError{Detected: len(embeddings)}
	}
	return r.engine.MatchOrCreateTx(ctx, tx, embeddings[0], ScopeOrphans, &userID)
}
