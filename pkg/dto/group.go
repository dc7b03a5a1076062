package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Description string `json:"description" binding:"max=500"`
}

type JoinGroupRequest struct {
	InviteCode string `json:"invite_code" binding:"required,len=6"`
}

type GroupResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatorID   uuid.UUID `json:"creator_id"`
	InviteCode  string    `json:"invite_code,omitempty"`
	RoleID      int       `json:"role_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type GroupMemberResponse struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	RoleID int       `json:"role_id"`
}

type SetRoleRequest struct {
	RoleID int `json:"role_id" binding:"required,min=1,max=5"`
}

type UpdateGroupRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
}

type TransferOwnershipRequest struct {
	NewOwnerID uuid.UUID `json:"new_owner_id" binding:"required"`
}
