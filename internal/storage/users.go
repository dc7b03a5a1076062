package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/snapvault/internal/models"
)

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.queryUser(ctx,
		`SELECT id, name, email, bio, hashed_password, profile_key, created_at
		 FROM users WHERE id = $1`, id)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.queryUser(ctx,
		`SELECT id, name, email, bio, hashed_password, profile_key, created_at
		 FROM users WHERE email = $1`, email)
}

func (s *PostgresStore) queryUser(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	u := &models.User{}
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.Bio, &u.HashedPassword, &u.ProfileKey, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) UpdateUserBio(ctx context.Context, id uuid.UUID, bio string) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET bio = $1 WHERE id = $2`, bio, id)
	return err
}

func (s *PostgresStore) UpdateUserName(ctx context.Context, id uuid.UUID, name string) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET name = $1 WHERE id = $2`, name, id)
	return err
}

func (s *PostgresStore) UpdateUserEmail(ctx context.Context, id uuid.UUID, email string) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET email = $1 WHERE id = $2`, email, id)
	if isUniqueViolation(err, "users_email_key") {
		return ErrEmailTaken
	}
	return err
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, id uuid.UUID, hashed string) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET hashed_password = $1 WHERE id = $2`, hashed, id)
	return err
}

// DeleteUser removes the user and everything hanging off them: groups they
// own (with those groups' photos and memberships), their other
// memberships, and their claimed identity, all via FK cascades inside one
// transaction. Returns the object keys of photos in deleted groups plus
// the profile picture, so the caller can clean up object storage.
func (s *PostgresStore) DeleteUser(ctx context.Context, id uuid.UUID) ([]string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT p.object_key FROM photos p
		 JOIN groups g ON g.id = p.group_id
		 WHERE g.creator_id = $1 OR p.uploader_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("collect photo keys: %w", err)
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan photo key: %w", err)
		}
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var profileKey string
	err = tx.QueryRow(ctx, `DELETE FROM users WHERE id = $1 RETURNING profile_key`, id).Scan(&profileKey)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("delete user: %w", err)
	}
	if profileKey != "" {
		keys = append(keys, profileKey)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit delete tx: %w", err)
	}
	return keys, nil
}

// RevokeToken records a bearer token's jti as logged out.
func (s *PostgresStore) RevokeToken(ctx context.Context, tokenID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO revoked_tokens (token_id) VALUES ($1) ON CONFLICT DO NOTHING`, tokenID)
	return err
}

func (s *PostgresStore) IsTokenRevoked(ctx context.Context, tokenID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_id = $1)`, tokenID).Scan(&exists)
	return exists, err
}
