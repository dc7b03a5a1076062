package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/snapvault/internal/models"
)

func (s *PostgresStore) CreatePhoto(ctx context.Context, p *models.Photo) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO photos (id, group_id, uploader_id, object_key, content_type)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		p.ID, p.GroupID, p.UploaderID, p.ObjectKey, p.ContentType,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create photo: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	p := &models.Photo{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, group_id, uploader_id, object_key, content_type, created_at
		 FROM photos WHERE id = $1`, id,
	).Scan(&p.ID, &p.GroupID, &p.UploaderID, &p.ObjectKey, &p.ContentType, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) PhotosForGroup(ctx context.Context, groupID uuid.UUID) ([]models.Photo, error) {
	return s.queryPhotos(ctx,
		`SELECT id, group_id, uploader_id, object_key, content_type, created_at
		 FROM photos WHERE group_id = $1 ORDER BY created_at DESC`, groupID)
}

func (s *PostgresStore) queryPhotos(ctx context.Context, query string, args ...interface{}) ([]models.Photo, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		var p models.Photo
		if err := rows.Scan(&p.ID, &p.GroupID, &p.UploaderID, &p.ObjectKey, &p.ContentType, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}
