package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/snapvault/internal/models"
)

// LinkPhotoToIdentity inserts one association row unconditionally.
// Duplicates are allowed: each independent match of the same face within
// a photo produces its own row.
func (s *PostgresStore) LinkPhotoToIdentity(ctx context.Context, photoID, identityID uuid.UUID, similarity float32) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO photo_identities (photo_id, identity_id, similarity) VALUES ($1, $2, $3)`,
		photoID, identityID, similarity)
	if err != nil {
		return fmt.Errorf("link photo to identity: %w", err)
	}
	return nil
}

// PhotosForIdentity returns the photos an identity appears in. Order is
// unspecified; duplicates are collapsed.
func (s *PostgresStore) PhotosForIdentity(ctx context.Context, identityID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT photo_id FROM photo_identities WHERE identity_id = $1`, identityID)
	if err != nil {
		return nil, fmt.Errorf("photos for identity: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan photo id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PersonInPhoto is one resolved appearance in a photo. Name is empty for
// orphan identities.
type PersonInPhoto struct {
	IdentityID  uuid.UUID  `json:"identity_id"`
	OwnerUserID *uuid.UUID `json:"owner_user_id,omitempty"`
	Name        string     `json:"name,omitempty"`
	Similarity  float32    `json:"similarity"`
}

// PeopleInPhoto answers "who appears in photo Y".
func (s *PostgresStore) PeopleInPhoto(ctx context.Context, photoID uuid.UUID) ([]PersonInPhoto, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (pi.identity_id)
			pi.identity_id, i.owner_user_id, COALESCE(u.name, ''), pi.similarity
		 FROM photo_identities pi
		 JOIN identities i ON i.id = pi.identity_id
		 LEFT JOIN users u ON u.id = i.owner_user_id
		 WHERE pi.photo_id = $1
		 ORDER BY pi.identity_id, pi.similarity DESC`, photoID)
	if err != nil {
		return nil, fmt.Errorf("people in photo: %w", err)
	}
	defer rows.Close()

	var people []PersonInPhoto
	for rows.Next() {
		var p PersonInPhoto
		if err := rows.Scan(&p.IdentityID, &p.OwnerUserID, &p.Name, &p.Similarity); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

// PhotosForUser answers "photos containing user X" across all groups,
// joining through the user's claimed identity.
func (s *PostgresStore) PhotosForUser(ctx context.Context, userID uuid.UUID) ([]models.Photo, error) {
	return s.queryPhotos(ctx,
		`SELECT DISTINCT p.id, p.group_id, p.uploader_id, p.object_key, p.content_type, p.created_at
		 FROM photos p
		 JOIN photo_identities pi ON pi.photo_id = p.id
		 JOIN identities i ON i.id = pi.identity_id
		 WHERE i.owner_user_id = $1`, userID)
}

// PhotosForUserInGroup restricts PhotosForUser to one group.
func (s *PostgresStore) PhotosForUserInGroup(ctx context.Context, userID, groupID uuid.UUID) ([]models.Photo, error) {
	return s.queryPhotos(ctx,
		`SELECT DISTINCT p.id, p.group_id, p.uploader_id, p.object_key, p.content_type, p.created_at
		 FROM photos p
		 JOIN photo_identities pi ON pi.photo_id = p.id
		 JOIN identities i ON i.id = pi.identity_id
		 WHERE i.owner_user_id = $1 AND p.group_id = $2`, userID, groupID)
}
