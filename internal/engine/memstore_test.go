package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/your-org/snapvault/internal/models"
)

// memStore is an in-memory Store for engine tests. The mutex held across
// InMatchTx plays the role of the database match lock: compare and write
// never interleave between callers.
type memStore struct {
	mu         sync.Mutex
	identities map[uuid.UUID]*models.Identity
}

func newMemStore() *memStore {
	return &memStore{identities: make(map[uuid.UUID]*models.Identity)}
}

func (s *memStore) InMatchTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memTx{store: s})
}

func (s *memStore) snapshot() []*models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Identity, 0, len(s.identities))
	for _, ident := range s.identities {
		cp := *ident
		cp.Centroid = append([]float32(nil), ident.Centroid...)
		out = append(out, &cp)
	}
	return out
}

type memTx struct {
	store *memStore
}

func (t *memTx) BestMatch(ctx context.Context, embedding []float32, scope Scope) (*models.Identity, float64, error) {
	var best *models.Identity
	bestSim := -2.0

	for _, ident := range t.store.identities {
		if scope == ScopeOrphans && ident.OwnerUserID != nil {
			continue
		}
		sim := CosineSimilarity(ident.Centroid, embedding)
		if sim > bestSim {
			bestSim = sim
			best = ident
		}
	}

	if best == nil {
		return nil, 0, nil
	}
	cp := *best
	cp.Centroid = append([]float32(nil), best.Centroid...)
	return &cp, bestSim, nil
}

func (t *memTx) UpdateIdentity(ctx context.Context, ident *models.Identity) error {
	if err := t.checkOwner(ident); err != nil {
		return err
	}
	cp := *ident
	cp.Centroid = append([]float32(nil), ident.Centroid...)
	t.store.identities[ident.ID] = &cp
	return nil
}

func (t *memTx) InsertIdentity(ctx context.Context, ident *models.Identity) error {
	if err := t.checkOwner(ident); err != nil {
		return err
	}
	cp := *ident
	cp.Centroid = append([]float32(nil), ident.Centroid...)
	t.store.identities[ident.ID] = &cp
	return nil
}

// checkOwner mirrors the partial unique index on owner_user_id.
func (t *memTx) checkOwner(ident *models.Identity) error {
	if ident.OwnerUserID == nil {
		return nil
	}
	for id, other := range t.store.identities {
		if id == ident.ID {
			continue
		}
		if other.OwnerUserID != nil && *other.OwnerUserID == *ident.OwnerUserID {
			return ErrOwnerConflict
		}
	}
	return nil
}
