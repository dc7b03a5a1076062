package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/snapvault/internal/api/handlers"
	"github.com/your-org/snapvault/internal/api/ws"
	"github.com/your-org/snapvault/internal/auth"
	"github.com/your-org/snapvault/internal/engine"
	"github.com/your-org/snapvault/internal/queue"
	"github.com/your-org/snapvault/internal/storage"
)

type RouterConfig struct {
	DB         *storage.PostgresStore
	MinIO      *storage.MinIOStore
	Producer   *queue.Producer
	Hub        *ws.Hub
	Tokens     *auth.TokenManager
	Reconciler *engine.Reconciler
	// ExtractFn extracts face embeddings from image bytes. Registration is
	// unavailable while it is nil (models still loading or absent).
	ExtractFn engine.ExtractFunc
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authH := handlers.NewAuthHandler(cfg.DB, cfg.MinIO, cfg.Tokens, cfg.Reconciler)
	authH.ExtractFn = cfg.ExtractFn

	// Public auth endpoints
	r.POST("/v1/auth/register", authH.Register)
	r.POST("/v1/auth/login", authH.Login)

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(cfg.Tokens.Middleware(cfg.DB))

	v1.POST("/auth/logout", authH.Logout)

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Users
	userH := handlers.NewUserHandler(cfg.DB, cfg.MinIO)
	v1.GET("/users/me", userH.Me)
	v1.PATCH("/users/me", userH.Update)
	v1.POST("/users/me/password", userH.ChangePassword)
	v1.DELETE("/users/me", userH.Delete)
	v1.GET("/users/me/photos", userH.MyPhotos)

	// Groups
	groupH := handlers.NewGroupHandler(cfg.DB, cfg.MinIO)
	v1.POST("/groups", groupH.Create)
	v1.GET("/groups", groupH.List)
	v1.GET("/groups/:id", groupH.Get)
	v1.PATCH("/groups/:id", groupH.Update)
	v1.DELETE("/groups/:id", groupH.Delete)
	v1.POST("/groups/join", groupH.Join)
	v1.DELETE("/groups/:id/leave", groupH.Leave)
	v1.GET("/groups/:id/members", groupH.Members)
	v1.PUT("/groups/:id/members/:userId/role", groupH.SetMemberRole)
	v1.PUT("/groups/:id/owner", groupH.TransferOwnership)
	v1.POST("/groups/:id/deactivate", groupH.Deactivate)
	v1.POST("/groups/:id/activate", groupH.Activate)

	// Photos
	photoH := handlers.NewPhotoHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	v1.POST("/groups/:id/photos", photoH.Upload)
	v1.GET("/groups/:id/photos", photoH.List)
	v1.GET("/photos/:id/file", photoH.File)
	v1.GET("/photos/:id/people", photoH.People)

	return r
}

// GroupViewChecker adapts membership lookups for the WebSocket hub.
func GroupViewChecker(db *storage.PostgresStore) ws.MembershipChecker {
	return func(c *gin.Context, userID, groupID uuid.UUID) bool {
		member, err := db.GetMembership(c.Request.Context(), userID, groupID)
		return err == nil && member != nil
	}
}
