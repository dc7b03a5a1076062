package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/snapvault/internal/models"
	"github.com/your-org/snapvault/internal/observability"
)

// ExtractFunc turns image bytes into zero or more face embeddings. It is
// the boundary to the external embedding model; the engine never inspects
// vectors beyond their dimension.
type ExtractFunc func(imageData []byte) ([][]float32, error)

// LinkStore records photo↔identity associations and resolves identity
// ownership for match events.
type LinkStore interface {
	LinkPhotoToIdentity(ctx context.Context, photoID, identityID uuid.UUID, similarity float32) error
	GetIdentity(ctx context.Context, id uuid.UUID) (*models.Identity, error)
}

// ObjectStore fetches uploaded photo bytes.
type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// Processor runs the upload-path face pipeline for one photo: fetch bytes,
// extract embeddings, match-or-create per face, link photo to identity.
type Processor struct {
	engine  *Engine
	links   LinkStore
	objects ObjectStore
	extract ExtractFunc

	// Notify, when set, is called for each resolved face (used to publish
	// match events). Failures there are the publisher's problem.
	Notify func(ctx context.Context, match models.FaceMatch)
}

func NewProcessor(engine *Engine, links LinkStore, objects ObjectStore, extract ExtractFunc) *Processor {
	return &Processor{engine: engine, links: links, objects: objects, extract: extract}
}

// ProcessPhoto handles one face task. Zero detected faces is a no-op: the
// photo stays stored, just without identity links. A failure on one face
// does not undo links already committed for earlier faces; per-face
// processing is independent.
//
// Extraction (the slow inference call) runs before any match lock is taken.
func (p *Processor) ProcessPhoto(ctx context.Context, task models.FaceTask) error {
	data, err := p.objects.GetObject(ctx, task.ObjectKey)
	if err != nil {
		return fmt.Errorf("load photo %s: %w", task.ObjectKey, err)
	}

	start := time.Now()
	embeddings, err := p.extract(data)
	if err != nil {
		return fmt.Errorf("extract faces: %w", err)
	}
	observability.ExtractDuration.Observe(time.Since(start).Seconds())

	if len(embeddings) == 0 {
		slog.Debug("no faces in photo", "photo", task.PhotoID)
		return nil
	}
	observability.FacesDetected.Add(float64(len(embeddings)))

	for i, emb := range embeddings {
		res, err := p.engine.MatchOrCreate(ctx, emb, ScopeAll, nil)
		if err != nil {
			return fmt.Errorf("match face %d of photo %s: %w", i, task.PhotoID, err)
		}

		if err := p.links.LinkPhotoToIdentity(ctx, task.PhotoID, res.IdentityID, float32(res.Similarity)); err != nil {
			return fmt.Errorf("link face %d of photo %s: %w", i, task.PhotoID, err)
		}

		if p.Notify != nil {
			match := models.FaceMatch{
				PhotoID:     task.PhotoID,
				GroupID:     task.GroupID,
				IdentityID:  res.IdentityID,
				Similarity:  float32(res.Similarity),
				NewIdentity: res.Created,
				Timestamp:   time.Now(),
			}
			if !res.Created {
				if ident, err := p.links.GetIdentity(ctx, res.IdentityID); err == nil && ident != nil {
					match.OwnerUserID = ident.OwnerUserID
				}
			}
			p.Notify(ctx, match)
		}
	}

	return nil
}
