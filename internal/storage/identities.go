package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/snapvault/internal/engine"
	"github.com/your-org/snapvault/internal/models"
)

// matchLockID keys the advisory lock that serializes every
// compare-then-write pass over the identity set. Orphan-scoped and
// all-scoped matches share the key: the orphan set is a subset of the full
// set, so a registration racing an upload must also be serialized.
const matchLockID int64 = 0x534e4156 // "SNAV"

// identityTx adapts a pgx transaction to the engine's Tx interface.
type identityTx struct {
	tx pgx.Tx
}

// InMatchTx runs fn in a transaction holding the match advisory lock.
// The lock releases on commit or rollback.
func (s *PostgresStore) InMatchTx(ctx context.Context, fn func(tx engine.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin match tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, matchLockID); err != nil {
		return fmt.Errorf("acquire match lock: %w", err)
	}

	if err := fn(&identityTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit match tx: %w", err)
	}
	return nil
}

// RegisterUser inserts the user row and runs reconcile in the same match
// transaction. If either side fails, both roll back: no user without its
// identity decision, no claimed identity without its user.
func (s *PostgresStore) RegisterUser(ctx context.Context, u *models.User, reconcile func(tx engine.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin register tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, matchLockID); err != nil {
		return fmt.Errorf("acquire match lock: %w", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO users (id, name, email, bio, hashed_password, profile_key)
		 VALUES ($1, $2, $3, COALESCE(NULLIF($4, ''), 'Hey there, I''m using SnapVault!'), $5, $6)
		 RETURNING bio, created_at`,
		u.ID, u.Name, u.Email, u.Bio, u.HashedPassword, u.ProfileKey,
	).Scan(&u.Bio, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}

	if err := reconcile(&identityTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit register tx: %w", err)
	}
	return nil
}

// BestMatch returns the in-scope identity nearest to the embedding by
// cosine distance, with its similarity. pgvector's <=> operator does the
// ranking so the scan never leaves the database.
func (t *identityTx) BestMatch(ctx context.Context, embedding []float32, scope engine.Scope) (*models.Identity, float64, error) {
	query := `SELECT id, centroid, sample_count, owner_user_id, created_at,
			1 - (centroid <=> $1) AS similarity
		FROM identities`
	if scope == engine.ScopeOrphans {
		query += ` WHERE owner_user_id IS NULL`
	}
	query += ` ORDER BY centroid <=> $1 LIMIT 1`

	vec := pgvector.NewVector(embedding)

	ident := &models.Identity{}
	var centroid pgvector.Vector
	var sim float64
	err := t.tx.QueryRow(ctx, query, vec).Scan(
		&ident.ID, &centroid, &ident.SampleCount, &ident.OwnerUserID, &ident.CreatedAt, &sim)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("best match: %w", err)
	}
	ident.Centroid = centroid.Slice()
	return ident, sim, nil
}

func (t *identityTx) UpdateIdentity(ctx context.Context, ident *models.Identity) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE identities SET centroid = $1, sample_count = $2, owner_user_id = $3 WHERE id = $4`,
		pgvector.NewVector(ident.Centroid), ident.SampleCount, ident.OwnerUserID, ident.ID)
	if err != nil {
		if isUniqueViolation(err, "uq_identities_owner") {
			return engine.ErrOwnerConflict
		}
		return fmt.Errorf("update identity: %w", err)
	}
	return nil
}

func (t *identityTx) InsertIdentity(ctx context.Context, ident *models.Identity) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO identities (id, centroid, sample_count, owner_user_id)
		 VALUES ($1, $2, $3, $4) RETURNING created_at`,
		ident.ID, pgvector.NewVector(ident.Centroid), ident.SampleCount, ident.OwnerUserID,
	).Scan(&ident.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "uq_identities_owner") {
			return engine.ErrOwnerConflict
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

// GetIdentity returns one identity by ID, or nil when absent.
func (s *PostgresStore) GetIdentity(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	ident := &models.Identity{}
	var centroid pgvector.Vector
	err := s.pool.QueryRow(ctx,
		`SELECT id, centroid, sample_count, owner_user_id, created_at FROM identities WHERE id = $1`, id,
	).Scan(&ident.ID, &centroid, &ident.SampleCount, &ident.OwnerUserID, &ident.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}
	ident.Centroid = centroid.Slice()
	return ident, nil
}

// IdentityForUser returns the identity claimed by the user, or nil when
// the user has none. The partial unique index guarantees at most one row.
func (s *PostgresStore) IdentityForUser(ctx context.Context, userID uuid.UUID) (*models.Identity, error) {
	ident := &models.Identity{}
	var centroid pgvector.Vector
	err := s.pool.QueryRow(ctx,
		`SELECT id, centroid, sample_count, owner_user_id, created_at
		 FROM identities WHERE owner_user_id = $1`, userID,
	).Scan(&ident.ID, &centroid, &ident.SampleCount, &ident.OwnerUserID, &ident.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("identity for user: %w", err)
	}
	ident.Centroid = centroid.Slice()
	return ident, nil
}
