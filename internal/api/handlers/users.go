package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/snapvault/internal/auth"
	"github.com/your-org/snapvault/internal/storage"
	"github.com/your-org/snapvault/pkg/dto"
)

type UserHandler struct {
	db    *storage.PostgresStore
	minio *storage.MinIOStore
}

func NewUserHandler(db *storage.PostgresStore, minio *storage.MinIOStore) *UserHandler {
	return &UserHandler{db: db, minio: minio}
}

func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.db.GetUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

func (h *UserHandler) Update(c *gin.Context) {
	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := auth.UserID(c)
	ctx := c.Request.Context()

	if req.Name != nil {
		if err := h.db.UpdateUserName(ctx, userID, *req.Name); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
	}
	if req.Email != nil {
		if err := h.db.UpdateUserEmail(ctx, userID, *req.Email); err != nil {
			if errors.Is(err, storage.ErrEmailTaken) {
				c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
	}
	if req.Bio != nil {
		if err := h.db.UpdateUserBio(ctx, userID, *req.Bio); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
	}

	user, err := h.db.GetUser(ctx, userID)
	if err != nil || user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := auth.UserID(c)
	user, err := h.db.GetUser(c.Request.Context(), userID)
	if err != nil || user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "password change failed"})
		return
	}
	if !auth.CheckPassword(user.HashedPassword, req.CurrentPassword) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "current password is wrong"})
		return
	}

	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "password change failed"})
		return
	}
	if err := h.db.UpdateUserPassword(c.Request.Context(), userID, hashed); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "password change failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password changed"})
}

// Delete removes the account, its claimed identity and everything hanging
// off groups the user owns, then cleans up object storage. Object deletion
// failures are logged, not surfaced: the database is already consistent.
func (h *UserHandler) Delete(c *gin.Context) {
	keys, err := h.db.DeleteUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}

	if len(keys) > 0 {
		if err := h.minio.DeleteObjects(c.Request.Context(), keys); err != nil {
			slog.Error("cleanup after user delete", "error", err, "keys", len(keys))
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// MyPhotos lists photos the caller appears in, across all their groups or
// restricted to one via ?group_id.
func (h *UserHandler) MyPhotos(c *gin.Context) {
	userID := auth.UserID(c)

	if groupStr := c.Query("group_id"); groupStr != "" {
		groupID, err := uuid.Parse(groupStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group_id"})
			return
		}
		photos, err := h.db.PhotosForUserInGroup(c.Request.Context(), userID, groupID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"photos": photoResponses(photos), "total": len(photos)})
		return
	}

	photos, err := h.db.PhotosForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"photos": photoResponses(photos), "total": len(photos)})
}
