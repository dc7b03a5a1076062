package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/snapvault/internal/config"
)

// ErrEmailTaken is returned when registering with an email that already exists.
var ErrEmailTaken = errors.New("email already registered")

// ErrNotAMember is returned by member mutations targeting a user who is
// not in the group.
var ErrNotAMember = errors.New("not a member of this group")

type PostgresStore struct {
	pool *pgxpool.Pool
	// dim is the embedding dimension of the identities.centroid column.
	dim int
}

func NewPostgresStore(cfg config.DatabaseConfig, embeddingDim int) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool, dim: embeddingDim}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies the schema. Statements are idempotent and run in order.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			bio TEXT NOT NULL DEFAULT 'Hey there, I''m using SnapVault!',
			hashed_password TEXT NOT NULL,
			profile_key TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS group_roles (
			id INT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`,

		`INSERT INTO group_roles (id, name) VALUES
			(1, 'owner'), (2, 'admin'), (3, 'contributor'),
			(4, 'viewer'), (5, 'restricted-viewer')
		ON CONFLICT (id) DO NOTHING`,

		`CREATE TABLE IF NOT EXISTS groups (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			creator_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			invite_code TEXT NOT NULL UNIQUE,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS group_members (
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			group_id UUID NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			role_id INT NOT NULL REFERENCES group_roles(id),
			joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, group_id)
		)`,

		`CREATE TABLE IF NOT EXISTS photos (
			id UUID PRIMARY KEY,
			group_id UUID NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			uploader_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			object_key TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT 'image/jpeg',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS identities (
			id UUID PRIMARY KEY,
			centroid vector(%d) NOT NULL,
			sample_count INT NOT NULL DEFAULT 1 CHECK (sample_count >= 1),
			owner_user_id UUID REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.dim),

		// One identity per user. Duplicate claims surface as a conflict
		// instead of silently leaving "first found" lookups ambiguous.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_identities_owner
			ON identities (owner_user_id) WHERE owner_user_id IS NOT NULL`,

		// No uniqueness on (photo_id, identity_id): the same face matched
		// twice within one photo keeps both rows.
		`CREATE TABLE IF NOT EXISTS photo_identities (
			photo_id UUID NOT NULL REFERENCES photos(id) ON DELETE CASCADE,
			identity_id UUID NOT NULL REFERENCES identities(id) ON DELETE CASCADE,
			similarity REAL NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_photo_identities_identity
			ON photo_identities (identity_id)`,

		`CREATE TABLE IF NOT EXISTS revoked_tokens (
			token_id UUID PRIMARY KEY,
			revoked_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a violation of the named constraint.
// Empty name matches any unique violation.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
