package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/snapvault/internal/auth"
	"github.com/your-org/snapvault/internal/engine"
	"github.com/your-org/snapvault/internal/models"
	"github.com/your-org/snapvault/internal/storage"
	"github.com/your-org/snapvault/pkg/dto"
)

// maxUploadBytes caps a single uploaded image.
const maxUploadBytes = 20 << 20

type AuthHandler struct {
	db         *storage.PostgresStore
	minio      *storage.MinIOStore
	tokens     *auth.TokenManager
	reconciler *engine.Reconciler
	// ExtractFn turns the profile picture into face embeddings. It runs
	// before the registration transaction opens.
	ExtractFn engine.ExtractFunc
}

func NewAuthHandler(db *storage.PostgresStore, minio *storage.MinIOStore, tokens *auth.TokenManager, reconciler *engine.Reconciler) *AuthHandler {
	return &AuthHandler{db: db, minio: minio, tokens: tokens, reconciler: reconciler}
}

// Register creates a user from a multipart form with a mandatory profile
// picture. The picture must contain exactly one face; that face either
// claims an orphan identity accumulated from earlier uploads or becomes a
// fresh identity owned by the user.
func (h *AuthHandler) Register(c *gin.Context) {
	if h.ExtractFn == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "face extraction not available"})
		return
	}

	var req dto.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "profile photo is required"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read photo"})
		return
	}
	imageData, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read photo"})
		return
	}

	// Model inference happens here, before any lock or transaction.
	embeddings, err := h.ExtractFn(imageData)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "face extraction failed"})
		return
	}
	if len(embeddings) != 1 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": (&engine.FaceCountError{Detected: len(embeddings)}).Error(),
		})
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	user := &models.User{
		ID:             uuid.New(),
		Name:           req.Name,
		Email:          strings.ToLower(req.Email),
		Bio:            req.Bio,
		HashedPassword: hashed,
		ProfileKey:     "profiles/" + uuid.New().String() + extOf(fileHeader.Filename),
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if err := h.minio.PutObject(c.Request.Context(), user.ProfileKey, imageData, contentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store profile photo failed"})
		return
	}

	err = h.db.RegisterUser(c.Request.Context(), user, func(tx engine.Tx) error {
		_, err := h.reconciler.ReconcileNewUser(c.Request.Context(), tx, user.ID, embeddings)
		return err
	})
	if err != nil {
		// The transaction rolled back; the stored photo must go too.
		if delErr := h.minio.DeleteObject(c.Request.Context(), user.ProfileKey); delErr != nil {
			slog.Error("orphaned profile photo", "key", user.ProfileKey, "error", delErr)
		}

		var faceErr *engine.FaceCountError
		switch {
		case errors.Is(err, storage.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		case errors.As(err, &faceErr):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": faceErr.Error()})
		case errors.Is(err, engine.ErrOwnerConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "user already has an identity"})
		default:
			slog.Error("registration failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}

	token, _, err := h.tokens.Issue(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}

	c.JSON(http.StatusCreated, dto.TokenResponse{
		Token: token,
		User:  userResponse(user),
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.db.GetUserByEmail(c.Request.Context(), strings.ToLower(req.Email))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	if user == nil || !auth.CheckPassword(user.HashedPassword, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, _, err := h.tokens.Issue(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}

	c.JSON(http.StatusOK, dto.TokenResponse{
		Token: token,
		User:  userResponse(user),
	})
}

// Logout revokes the current token.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.db.RevokeToken(c.Request.Context(), auth.TokenID(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func userResponse(u *models.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Bio:       u.Bio,
		CreatedAt: u.CreatedAt,
	}
}

func extOf(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png":
		return ext
	default:
		return ".jpg"
	}
}
