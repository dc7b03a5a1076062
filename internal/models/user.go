package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Email          string    `json:"email" db:"email"`
	Bio            string    `json:"bio" db:"bio"`
	HashedPassword string    `json:"-" db:"hashed_password"`
	ProfileKey     string    `json:"-" db:"profile_key"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
