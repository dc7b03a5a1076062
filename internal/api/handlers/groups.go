package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/snapvault/internal/auth"
	"github.com/your-org/snapvault/internal/models"
	"github.com/your-org/snapvault/internal/storage"
	"github.com/your-org/snapvault/pkg/dto"
)

type GroupHandler struct {
	db    *storage.PostgresStore
	minio *storage.MinIOStore
}

func NewGroupHandler(db *storage.PostgresStore, minio *storage.MinIOStore) *GroupHandler {
	return &GroupHandler{db: db, minio: minio}
}

func (h *GroupHandler) Create(c *gin.Context) {
	var req dto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.db.CreateGroup(c.Request.Context(), req.Name, req.Description, auth.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, groupResponse(group, models.RoleOwner))
}

func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.db.GroupsForUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.GroupResponse, 0, len(groups))
	for i := range groups {
		resp = append(resp, groupResponse(&groups[i], 0))
	}
	c.JSON(http.StatusOK, gin.H{"groups": resp, "total": len(resp)})
}

func (h *GroupHandler) Get(c *gin.Context) {
	group, member, ok := requireMembership(c, h.db)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, groupResponse(group, member.RoleID))
}

// Update changes the group's name or description. Admins and above, and
// only while the group is active.
func (h *GroupHandler) Update(c *gin.Context) {
	group, member, ok := requireMembership(c, h.db)
	if !ok {
		return
	}
	if member.RoleID > models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
		return
	}
	if !group.IsActive {
		c.JSON(http.StatusConflict, gin.H{"error": "group is deactivated"})
		return
	}

	var req dto.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.db.UpdateGroup(c.Request.Context(), group.ID, req.Name, req.Description)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if updated == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	c.JSON(http.StatusOK, groupResponse(updated, member.RoleID))
}

// Leave removes the caller from the group. The owner cannot leave their
// own group; they have to transfer ownership or delete it.
func (h *GroupHandler) Leave(c *gin.Context) {
	group, member, ok := requireMembership(c, h.db)
	if !ok {
		return
	}
	if member.RoleID == models.RoleOwner {
		c.JSON(http.StatusForbidden, gin.H{"error": "owner cannot leave their own group"})
		return
	}

	if _, err := h.db.RemoveMember(c.Request.Context(), member.UserID, group.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left group"})
}

// Delete removes the group with its memberships, photos and links, then
// cleans the photo objects out of storage. Owner only.
func (h *GroupHandler) Delete(c *gin.Context) {
	group, member, ok := requireMembership(c, h.db)
	if !ok {
		return
	}
	if member.RoleID != models.RoleOwner {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can delete the group"})
		return
	}

	keys, err := h.db.DeleteGroup(c.Request.Context(), group.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.minio.DeleteObjects(c.Request.Context(), keys); err != nil {
		// Rows are gone; orphaned objects are only a storage leak.
		slog.Error("delete group objects", "group", group.ID, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "group deleted"})
}

// TransferOwnership hands the owner role to another member. The previous
// owner stays in the group as a restricted viewer.
func (h *GroupHandler) TransferOwnership(c *gin.Context) {
	group, member, ok := requireMembership(c, h.db)
	if !ok {
		return
	}
	if member.RoleID != models.RoleOwner {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can transfer ownership"})
		return
	}

	var req dto.TransferOwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.NewOwnerID == member.UserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "already the owner"})
		return
	}

	err := h.db.TransferOwnership(c.Request.Context(), group.ID, member.UserID, req.NewOwnerID)
	if err == storage.ErrNotAMember {
		c.JSON(http.StatusNotFound, gin.H{"error": "new owner is not a member of this group"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ownership transferred"})
}

// Deactivate freezes the group: joining and changes are blocked until it
// is activated again. Owner only.
func (h *GroupHandler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

// Activate reopens a deactivated group. Owner only.
func (h *GroupHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

func (h *GroupHandler) setActive(c *gin.Context, active bool) {
	group, member, ok := requireMembership(c, h.db)
	if !ok {
		return
	}
	if member.RoleID != models.RoleOwner {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can change group state"})
		return
	}

	changed, err := h.db.SetGroupActive(c.Request.Context(), group.ID, active)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !changed {
		state := "deactivated"
		if active {
			state = "active"
		}
		c.JSON(http.StatusConflict, gin.H{"error": "group is already " + state})
		return
	}

	status := "group deactivated"
	if active {
		status = "group activated"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// Join adds the caller to the group behind an invite code, always with
// the restricted viewer role.
func (h *GroupHandler) Join(c *gin.Context) {
	var req dto.JoinGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.db.GetGroupByInviteCode(c.Request.Context(), req.InviteCode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if group == nil || !group.IsActive {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid invite code"})
		return
	}

	joined, err := h.db.AddMember(c.Request.Context(), auth.UserID(c), group.ID, models.RoleRestrictedViewer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !joined {
		c.JSON(http.StatusConflict, gin.H{"error": "already a member"})
		return
	}

	c.JSON(http.StatusOK, groupResponse(group, models.RoleRestrictedViewer))
}

func (h *GroupHandler) Members(c *gin.Context) {
	group, _, ok := requireMembership(c, h.db)
	if !ok {
		return
	}

	members, err := h.db.GroupMembers(c.Request.Context(), group.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.GroupMemberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, dto.GroupMemberResponse{UserID: m.UserID, Name: m.Name, RoleID: m.RoleID})
	}
	c.JSON(http.StatusOK, gin.H{"members": resp, "total": len(resp)})
}

// SetMemberRole lets the group owner or an admin change another member's
// role. The owner role itself cannot be handed out this way.
func (h *GroupHandler) SetMemberRole(c *gin.Context) {
	group, member, ok := requireMembership(c, h.db)
	if !ok {
		return
	}
	if member.RoleID > models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
		return
	}
	if !group.IsActive {
		c.JSON(http.StatusConflict, gin.H{"error": "group is deactivated"})
		return
	}

	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req dto.SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.RoleID == models.RoleOwner || targetID == group.CreatorID {
		c.JSON(http.StatusForbidden, gin.H{"error": "owner role cannot be changed"})
		return
	}

	updated, err := h.db.UpdateMemberRole(c.Request.Context(), targetID, group.ID, req.RoleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "not a member"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "role updated"})
}

// requireMembership parses the :id param, loads the group and checks the
// caller is a member. Shared by the group and photo handlers; writes the
// error response itself on failure.
func requireMembership(c *gin.Context, db *storage.PostgresStore) (*models.Group, *models.GroupMember, bool) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return nil, nil, false
	}

	group, err := db.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, nil, false
	}
	if group == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return nil, nil, false
	}

	member, err := db.GetMembership(c.Request.Context(), auth.UserID(c), groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, nil, false
	}
	if member == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this group"})
		return nil, nil, false
	}

	return group, member, true
}

// groupResponse hides the invite code from plain members.
func groupResponse(g *models.Group, roleID int) dto.GroupResponse {
	resp := dto.GroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		CreatorID:   g.CreatorID,
		RoleID:      roleID,
		CreatedAt:   g.CreatedAt,
	}
	if roleID == models.RoleOwner || roleID == models.RoleAdmin {
		resp.InviteCode = g.InviteCode
	}
	return resp
}
