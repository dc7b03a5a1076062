package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/snapvault/internal/auth"
	"github.com/your-org/snapvault/internal/models"
	"github.com/your-org/snapvault/internal/observability"
	"github.com/your-org/snapvault/internal/queue"
	"github.com/your-org/snapvault/internal/storage"
	"github.com/your-org/snapvault/pkg/dto"
)

type PhotoHandler struct {
	db       *storage.PostgresStore
	minio    *storage.MinIOStore
	producer *queue.Producer
}

func NewPhotoHandler(db *storage.PostgresStore, minio *storage.MinIOStore, producer *queue.Producer) *PhotoHandler {
	return &PhotoHandler{db: db, minio: minio, producer: producer}
}

// Upload accepts a multipart batch of photos for a group. Each file is
// stored and queued independently: one bad file fails alone, the rest go
// through. Face extraction happens later on the worker, so a photo with
// zero faces is still a successful upload.
func (h *PhotoHandler) Upload(c *gin.Context) {
	group, member, ok := requireMembership(c, h.db)
	if !ok {
		return
	}
	if !member.CanUpload() {
		c.JSON(http.StatusForbidden, gin.H{"error": "role does not permit uploads"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}
	files := form.File["photos"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no photos in request"})
		return
	}

	userID := auth.UserID(c)
	result := dto.UploadResult{}

	for _, fh := range files {
		resp, reason := h.uploadOne(c, group.ID, userID, fh)
		if reason != "" {
			result.Failed = append(result.Failed, dto.UploadFailure{Filename: fh.Filename, Reason: reason})
			continue
		}
		result.Uploaded = append(result.Uploaded, *resp)
	}

	status := http.StatusCreated
	if len(result.Uploaded) == 0 {
		status = http.StatusBadRequest
	}
	c.JSON(status, result)
}

func (h *PhotoHandler) uploadOne(c *gin.Context, groupID, userID uuid.UUID, fh *multipart.FileHeader) (*dto.PhotoResponse, string) {
	if fh.Size > maxUploadBytes {
		return nil, "file too large"
	}

	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "not an image"
	}

	file, err := fh.Open()
	if err != nil {
		return nil, "cannot read file"
	}
	data, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		return nil, "cannot read file"
	}

	photo := &models.Photo{
		ID:          uuid.New(),
		GroupID:     groupID,
		UploaderID:  userID,
		ContentType: contentType,
	}
	photo.ObjectKey = fmt.Sprintf("photos/%s/%s%s", groupID, photo.ID, extOf(fh.Filename))

	ctx := c.Request.Context()
	if err := h.minio.PutObject(ctx, photo.ObjectKey, data, contentType); err != nil {
		slog.Error("store photo", "error", err)
		return nil, "storage failed"
	}

	if err := h.db.CreatePhoto(ctx, photo); err != nil {
		// Keep storage consistent with the database.
		if delErr := h.minio.DeleteObject(ctx, photo.ObjectKey); delErr != nil {
			slog.Error("orphaned photo object", "key", photo.ObjectKey, "error", delErr)
		}
		slog.Error("create photo", "error", err)
		return nil, "storage failed"
	}

	task := models.FaceTask{
		PhotoID:    photo.ID,
		GroupID:    groupID,
		UploaderID: userID,
		ObjectKey:  photo.ObjectKey,
	}
	if err := h.producer.PublishFaceTask(ctx, groupID.String(), task); err != nil {
		// The photo is stored and visible; only clustering is delayed.
		slog.Error("publish face task", "photo", photo.ID, "error", err)
	}

	observability.PhotosUploaded.WithLabelValues(groupID.String()).Inc()
	return photoResponsePtr(photo), ""
}

// List returns a group's photos. Restricted viewers only get photos their
// identity appears in.
func (h *PhotoHandler) List(c *gin.Context) {
	group, member, ok := requireMembership(c, h.db)
	if !ok {
		return
	}

	var photos []models.Photo
	var err error
	if member.CanViewAll() {
		photos, err = h.db.PhotosForGroup(c.Request.Context(), group.ID)
	} else {
		photos, err = h.db.PhotosForUserInGroup(c.Request.Context(), auth.UserID(c), group.ID)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"photos": photoResponses(photos), "total": len(photos)})
}

// File streams the photo bytes. Access follows the same rules as listing.
func (h *PhotoHandler) File(c *gin.Context) {
	photo, ok := h.requirePhotoAccess(c)
	if !ok {
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), photo.ObjectKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "photo fetch failed"})
		return
	}
	c.Data(http.StatusOK, photo.ContentType, data)
}

// People answers "who appears in this photo".
func (h *PhotoHandler) People(c *gin.Context) {
	photo, ok := h.requirePhotoAccess(c)
	if !ok {
		return
	}

	people, err := h.db.PeopleInPhoto(c.Request.Context(), photo.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.PersonResponse, 0, len(people))
	for _, p := range people {
		resp = append(resp, dto.PersonResponse{
			IdentityID: p.IdentityID,
			UserID:     p.OwnerUserID,
			Name:       p.Name,
			Similarity: p.Similarity,
		})
	}
	c.JSON(http.StatusOK, gin.H{"people": resp, "total": len(resp)})
}

// requirePhotoAccess loads the photo and checks group membership plus the
// restricted-viewer rule. Writes the error response itself on failure.
func (h *PhotoHandler) requirePhotoAccess(c *gin.Context) (*models.Photo, bool) {
	photoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo id"})
		return nil, false
	}

	photo, err := h.db.GetPhoto(c.Request.Context(), photoID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if photo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return nil, false
	}

	userID := auth.UserID(c)
	member, err := h.db.GetMembership(c.Request.Context(), userID, photo.GroupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if member == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this group"})
		return nil, false
	}

	if !member.CanViewAll() {
		visible, err := h.db.PhotosForUserInGroup(c.Request.Context(), userID, photo.GroupID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return nil, false
		}
		for _, p := range visible {
			if p.ID == photo.ID {
				return photo, true
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "photo not visible for this role"})
		return nil, false
	}

	return photo, true
}

func photoResponsePtr(p *models.Photo) *dto.PhotoResponse {
	return &dto.PhotoResponse{
		ID:         p.ID,
		GroupID:    p.GroupID,
		UploaderID: p.UploaderID,
		URL:        "/v1/photos/" + p.ID.String() + "/file",
		CreatedAt:  p.CreatedAt,
	}
}

func photoResponses(photos []models.Photo) []dto.PhotoResponse {
	resp := make([]dto.PhotoResponse, 0, len(photos))
	for i := range photos {
		resp = append(resp, *photoResponsePtr(&photos[i]))
	}
	return resp
}
