package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/snapvault/internal/models"
)

type memLink struct {
	photoID    uuid.UUID
	identityID uuid.UUID
}

// memLinks records photo-identity links and resolves identities from the
// backing memStore.
type memLinks struct {
	mu    sync.Mutex
	store *memStore
	links []memLink
}

func (l *memLinks) LinkPhotoToIdentity(ctx context.Context, photoID, identityID uuid.UUID, similarity float32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.links = append(l.links, memLink{photoID: photoID, identityID: identityID})
	return nil
}

func (l *memLinks) GetIdentity(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	for _, ident := range l.store.snapshot() {
		if ident.ID == id {
			return ident, nil
		}
	}
	return nil, nil
}

type memObjects map[string][]byte

func (o memObjects) GetObject(ctx context.Context, key string) ([]byte, error) {
	data, ok := o[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

// fakeExtract maps object bytes to canned embeddings keyed by content.
func fakeExtract(embeddings map[string][][]float32) ExtractFunc {
	return func(imageData []byte) ([][]float32, error) {
		return embeddings[string(imageData)], nil
	}
}

func testTask(key string) models.FaceTask {
	return models.FaceTask{
		PhotoID:    uuid.New(),
		GroupID:    uuid.New(),
		UploaderID: uuid.New(),
		ObjectKey:  key,
	}
}

func TestProcessPhotoZeroFacesIsNoop(t *testing.T) {
	store := newMemStore()
	links := &memLinks{store: store}
	objects := memObjects{"photos/g/empty.jpg": []byte("landscape")}

	proc := NewProcessor(
		New(store, testDim, DefaultThreshold),
		links, objects,
		fakeExtract(map[string][][]float32{"landscape": nil}),
	)

	err := proc.ProcessPhoto(context.Background(), testTask("photos/g/empty.jpg"))
	require.NoError(t, err)
	assert.Empty(t, store.snapshot())
	assert.Empty(t, links.links)
}

func TestProcessPhotoLinksEveryFace(t *testing.T) {
	store := newMemStore()
	links := &memLinks{store: store}
	objects := memObjects{"photos/g/crowd.jpg": []byte("crowd")}

	// Three faces: two of the same person, one different.
	proc := NewProcessor(
		New(store, testDim, DefaultThreshold),
		links, objects,
		fakeExtract(map[string][][]float32{
			"crowd": {
				{1, 0, 0, 0},
				{0, 1, 0, 0},
				{1, 0.05, 0, 0},
			},
		}),
	)

	task := testTask("photos/g/crowd.jpg")
	err := proc.ProcessPhoto(context.Background(), task)
	require.NoError(t, err)

	// Two clusters, three links, one per detected face.
	assert.Len(t, store.snapshot(), 2)
	require.Len(t, links.links, 3)
	for _, link := range links.links {
		assert.Equal(t, task.PhotoID, link.photoID)
	}
	// First and third face share an identity.
	assert.Equal(t, links.links[0].identityID, links.links[2].identityID)
	assert.NotEqual(t, links.links[0].identityID, links.links[1].identityID)
}

func TestProcessPhotoMissingObject(t *testing.T) {
	store := newMemStore()
	proc := NewProcessor(
		New(store, testDim, DefaultThreshold),
		&memLinks{store: store}, memObjects{},
		fakeExtract(nil),
	)

	err := proc.ProcessPhoto(context.Background(), testTask("photos/g/gone.jpg"))
	assert.Error(t, err)
}

func TestProcessPhotoNotifiesOwner(t *testing.T) {
	store := newMemStore()
	links := &memLinks{store: store}
	eng := New(store, testDim, DefaultThreshold)
	ctx := context.Background()

	// A registered user's claimed identity already exists.
	userID := uuid.New()
	claimed, err := eng.MatchOrCreate(ctx, []float32{1, 0, 0, 0}, ScopeOrphans, &userID)
	require.NoError(t, err)

	objects := memObjects{"photos/g/me.jpg": []byte("me")}
	proc := NewProcessor(eng, links, objects,
		fakeExtract(map[string][][]float32{"me": {{1, 0.01, 0, 0}}}))

	var matches []models.FaceMatch
	proc.Notify = func(ctx context.Context, match models.FaceMatch) {
		matches = append(matches, match)
	}

	task := testTask("photos/g/me.jpg")
	err = proc.ProcessPhoto(ctx, task)
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, task.PhotoID, matches[0].PhotoID)
	assert.Equal(t, claimed.IdentityID, matches[0].IdentityID)
	assert.False(t, matches[0].NewIdentity)
	require.NotNil(t, matches[0].OwnerUserID)
	assert.Equal(t, userID, *matches[0].OwnerUserID)
}
