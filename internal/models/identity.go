package models

import (
	"time"

	"github.com/google/uuid"
)

// Identity is one face cluster: a running centroid plus the number of
// embeddings merged into it. An identity with no owner is an orphan:
// it was seen in group photos before anyone claimed it at registration.
type Identity struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Centroid    []float32  `json:"-" db:"centroid"`
	SampleCount int        `json:"sample_count" db:"sample_count"`
	OwnerUserID *uuid.UUID `json:"owner_user_id,omitempty" db:"owner_user_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// Claimed reports whether the identity has been bound to a registered user.
func (i *Identity) Claimed() bool {
	return i.OwnerUserID != nil
}

// PhotoIdentityLink ties one detected face in a photo to an identity.
// There is deliberately no uniqueness constraint: the same face matched
// twice within a photo produces two rows.
type PhotoIdentityLink struct {
	PhotoID    uuid.UUID `json:"photo_id" db:"photo_id"`
	IdentityID uuid.UUID `json:"identity_id" db:"identity_id"`
	Similarity float32   `json:"similarity" db:"similarity"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// FaceTask is the message published to NATS after a photo upload.
// The worker fetches the object, extracts embeddings and runs clustering.
type FaceTask struct {
	PhotoID    uuid.UUID `json:"photo_id"`
	GroupID    uuid.UUID `json:"group_id"`
	UploaderID uuid.UUID `json:"uploader_id"`
	ObjectKey  string    `json:"object_key"`
}

// FaceMatch is published for every face resolved by the worker.
type FaceMatch struct {
	PhotoID     uuid.UUID  `json:"photo_id"`
	GroupID     uuid.UUID  `json:"group_id"`
	IdentityID  uuid.UUID  `json:"identity_id"`
	OwnerUserID *uuid.UUID `json:"owner_user_id,omitempty"`
	Similarity  float32    `json:"similarity"`
	NewIdentity bool       `json:"new_identity"`
	Timestamp   time.Time  `json:"timestamp"`
}
