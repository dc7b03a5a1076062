package models

import (
	"time"

	"github.com/google/uuid"
)

// Group member roles, seeded into group_roles at migration time.
const (
	RoleOwner            = 1
	RoleAdmin            = 2
	RoleContributor      = 3
	RoleViewer           = 4
	RoleRestrictedViewer = 5
)

type Group struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatorID   uuid.UUID `json:"creator_id" db:"creator_id"`
	InviteCode  string    `json:"invite_code" db:"invite_code"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type GroupMember struct {
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	GroupID  uuid.UUID `json:"group_id" db:"group_id"`
	RoleID   int       `json:"role_id" db:"role_id"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}

// CanUpload reports whether the member's role permits uploading photos.
func (m *GroupMember) CanUpload() bool {
	return m.RoleID >= RoleOwner && m.RoleID <= RoleContributor
}

// CanViewAll reports whether the member may browse every photo in the group.
// Restricted viewers only see photos they appear in.
func (m *GroupMember) CanViewAll() bool {
	return m.RoleID >= RoleOwner && m.RoleID <= RoleViewer
}
