package dto

import (
	"time"

	"github.com/google/uuid"
)

type PhotoResponse struct {
	ID         uuid.UUID `json:"id"`
	GroupID    uuid.UUID `json:"group_id"`
	UploaderID uuid.UUID `json:"uploader_id"`
	URL        string    `json:"url"`
	CreatedAt  time.Time `json:"created_at"`
}

// UploadResult reports the outcome of a batch upload. Files that failed
// are listed with a reason; the rest were accepted and queued.
type UploadResult struct {
	Uploaded []PhotoResponse `json:"uploaded"`
	Failed   []UploadFailure `json:"failed,omitempty"`
}

type UploadFailure struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// PersonResponse describes one identified person on a photo.
type PersonResponse struct {
	IdentityID uuid.UUID  `json:"identity_id"`
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Similarity float32    `json:"similarity"`
}
