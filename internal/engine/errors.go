package engine

import (
	"errors"
	"fmt"
)

// ErrOwnerConflict is returned when a claim would give a user a second
// identity. The store enforces this with a unique constraint.
var ErrOwnerConflict = errors.New("user already owns an identity")

// DimensionError reports an embedding whose length does not match the
// deployment's embedding dimension. This is fatal: it means the caller
// mixed model versions, and merging would corrupt every centroid it touches.
type DimensionError struct {
	Got  int
	Want int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension %d, store expects %d", e.Got, e.Want)
}

// FaceCountError rejects a profile picture that does not contain exactly
// one face. Registration aborts and the uploaded file is discarded.
type FaceCountError struct {
	Detected int
}

func (e *FaceCountError) Error() string {
	return fmt.Sprintf("profile picture must contain exactly one face, detected %d", e.Detected)
}
