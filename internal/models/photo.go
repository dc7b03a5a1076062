package models

import (
	"time"

	"github.com/google/uuid"
)

type Photo struct {
	ID          uuid.UUID `json:"id" db:"id"`
	GroupID     uuid.UUID `json:"group_id" db:"group_id"`
	UploaderID  uuid.UUID `json:"uploader_id" db:"uploader_id"`
	ObjectKey   string    `json:"object_key" db:"object_key"`
	ContentType string    `json:"content_type" db:"content_type"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
