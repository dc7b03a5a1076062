package storage

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/snapvault/internal/models"
)

const inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const inviteCodeLength = 6

func generateInviteCode() (string, error) {
	code := make([]byte, inviteCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(inviteCodeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("generate invite code: %w", err)
		}
		code[i] = inviteCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// CreateGroup inserts a group with a fresh invite code and makes the
// creator its owner. Retries on invite-code collision.
func (s *PostgresStore) CreateGroup(ctx context.Context, name, description string, creatorID uuid.UUID) (*models.Group, error) {
	const maxAttempts = 10

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := generateInviteCode()
		if err != nil {
			return nil, err
		}

		g := &models.Group{
			ID:          uuid.New(),
			Name:        name,
			Description: description,
			CreatorID:   creatorID,
			InviteCode:  code,
			IsActive:    true,
		}

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("begin create group tx: %w", err)
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO groups (id, name, description, creator_id, invite_code)
			 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
			g.ID, g.Name, g.Description, g.CreatorID, g.InviteCode,
		).Scan(&g.CreatedAt)
		if err != nil {
			tx.Rollback(ctx)
			if isUniqueViolation(err, "groups_invite_code_key") {
				continue
			}
			return nil, fmt.Errorf("create group: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO group_members (user_id, group_id, role_id) VALUES ($1, $2, $3)`,
			creatorID, g.ID, models.RoleOwner)
		if err != nil {
			tx.Rollback(ctx)
			return nil, fmt.Errorf("add group owner: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit create group tx: %w", err)
		}
		return g, nil
	}

	return nil, fmt.Errorf("could not generate a unique invite code after %d attempts", maxAttempts)
}

func (s *PostgresStore) GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	return s.queryGroup(ctx,
		`SELECT id, name, description, creator_id, invite_code, is_active, created_at
		 FROM groups WHERE id = $1`, id)
}

func (s *PostgresStore) GetGroupByInviteCode(ctx context.Context, code string) (*models.Group, error) {
	return s.queryGroup(ctx,
		`SELECT id, name, description, creator_id, invite_code, is_active, created_at
		 FROM groups WHERE invite_code = $1`, code)
}

func (s *PostgresStore) queryGroup(ctx context.Context, query string, arg interface{}) (*models.Group, error) {
	g := &models.Group{}
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&g.ID, &g.Name, &g.Description, &g.CreatorID, &g.InviteCode, &g.IsActive, &g.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

// AddMember joins a user to a group with the given role. Returns false
// when the user is already a member.
func (s *PostgresStore) AddMember(ctx context.Context, userID, groupID uuid.UUID, roleID int) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO group_members (user_id, group_id, role_id) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, group_id) DO NOTHING`,
		userID, groupID, roleID)
	if err != nil {
		return false, fmt.Errorf("add member: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetMembership returns the caller's membership in a group, or nil.
func (s *PostgresStore) GetMembership(ctx context.Context, userID, groupID uuid.UUID) (*models.GroupMember, error) {
	m := &models.GroupMember{}
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, group_id, role_id, joined_at
		 FROM group_members WHERE user_id = $1 AND group_id = $2`, userID, groupID,
	).Scan(&m.UserID, &m.GroupID, &m.RoleID, &m.JoinedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

// UpdateMemberRole changes a member's role. Returns false when the user
// is not a member.
func (s *PostgresStore) UpdateMemberRole(ctx context.Context, userID, groupID uuid.UUID, roleID int) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE group_members SET role_id = $1 WHERE user_id = $2 AND group_id = $3`,
		roleID, userID, groupID)
	if err != nil {
		return false, fmt.Errorf("update member role: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveMember drops a user's membership. Returns false when the user
// was not a member.
func (s *PostgresStore) RemoveMember(ctx context.Context, userID, groupID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM group_members WHERE user_id = $1 AND group_id = $2`, userID, groupID)
	if err != nil {
		return false, fmt.Errorf("remove member: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateGroup changes the group's name and/or description. Nil fields
// are left untouched. Returns the updated group, or nil when it does
// not exist.
func (s *PostgresStore) UpdateGroup(ctx context.Context, id uuid.UUID, name, description *string) (*models.Group, error) {
	g := &models.Group{}
	err := s.pool.QueryRow(ctx,
		`UPDATE groups SET name = COALESCE($2, name), description = COALESCE($3, description)
		 WHERE id = $1
		 RETURNING id, name, description, creator_id, invite_code, is_active, created_at`,
		id, name, description,
	).Scan(&g.ID, &g.Name, &g.Description, &g.CreatorID, &g.InviteCode, &g.IsActive, &g.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("update group: %w", err)
	}
	return g, nil
}

// TransferOwnership makes toUserID the group owner and demotes the
// previous owner to restricted viewer, in one transaction. creator_id
// follows the owner role so account-deletion cleanup tracks the current
// owner, not the historical creator.
func (s *PostgresStore) TransferOwnership(ctx context.Context, groupID, fromUserID, toUserID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transfer tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE group_members SET role_id = $1 WHERE user_id = $2 AND group_id = $3`,
		models.RoleOwner, toUserID, groupID)
	if err != nil {
		return fmt.Errorf("promote new owner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotAMember
	}

	_, err = tx.Exec(ctx,
		`UPDATE group_members SET role_id = $1 WHERE user_id = $2 AND group_id = $3`,
		models.RoleRestrictedViewer, fromUserID, groupID)
	if err != nil {
		return fmt.Errorf("demote previous owner: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE groups SET creator_id = $1 WHERE id = $2`, toUserID, groupID)
	if err != nil {
		return fmt.Errorf("update group owner: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transfer tx: %w", err)
	}
	return nil
}

// SetGroupActive toggles the group's active flag. Returns false when the
// group was already in the requested state.
func (s *PostgresStore) SetGroupActive(ctx context.Context, id uuid.UUID, active bool) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE groups SET is_active = $2 WHERE id = $1 AND is_active <> $2`, id, active)
	if err != nil {
		return false, fmt.Errorf("set group active: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteGroup removes the group; memberships, photos and photo-identity
// links go with it via FK cascades. Returns the object keys of the
// group's photos so the caller can clean up object storage.
func (s *PostgresStore) DeleteGroup(ctx context.Context, id uuid.UUID) ([]string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin delete group tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT object_key FROM photos WHERE group_id = $1`, id)
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

	if _, err := tx.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete group: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit delete group tx: %w", err)
	}
	return keys, nil
}

func (s *PostgresStore) GroupsForUser(ctx context.Context, userID uuid.UUID) ([]models.Group, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT g.id, g.name, g.description, g.creator_id, g.invite_code, g.is_active, g.created_at
		 FROM groups g
		 JOIN group_members gm ON gm.group_id = g.id
		 WHERE gm.user_id = $1
		 ORDER BY g.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("groups for user: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatorID, &g.InviteCode, &g.IsActive, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// GroupMemberInfo is a member row joined with the user's name.
type GroupMemberInfo struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	RoleID int       `json:"role_id"`
}

func (s *PostgresStore) GroupMembers(ctx context.Context, groupID uuid.UUID) ([]GroupMemberInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.name, gm.role_id
		 FROM group_members gm
		 JOIN users u ON u.id = gm.user_id
		 WHERE gm.group_id = $1
		 ORDER BY gm.joined_at`, groupID)
	if err != nil {
		return nil, fmt.Errorf("group members: %w", err)
	}
	defer rows.Close()

	var members []GroupMemberInfo
	for rows.Next() {
		var m GroupMemberInfo
		if err := rows.Scan(&m.UserID, &m.Name, &m.RoleID); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
