package dto

import (
	"time"

	"github.com/google/uuid"
)

// MatchEvent is pushed over WebSocket when a face on a fresh upload
// resolves to an identity.
type MatchEvent struct {
	Type        string     `json:"type"` // always "face_matched"
	PhotoID     uuid.UUID  `json:"photo_id"`
	GroupID     uuid.UUID  `json:"group_id"`
	IdentityID  uuid.UUID  `json:"identity_id"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	Similarity  float64    `json:"similarity"`
	NewIdentity bool       `json:"new_identity"`
	Timestamp   time.Time  `json:"timestamp"`
}
