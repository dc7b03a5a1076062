package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/snapvault/internal/api"
	"github.com/your-org/snapvault/internal/api/ws"
	"github.com/your-org/snapvault/internal/auth"
	"github.com/your-org/snapvault/internal/config"
	"github.com/your-org/snapvault/internal/engine"
	"github.com/your-org/snapvault/internal/models"
	"github.com/your-org/snapvault/internal/observability"
	"github.com/your-org/snapvault/internal/queue"
	"github.com/your-org/snapvault/internal/storage"
	"github.com/your-org/snapvault/internal/vision"
	"github.com/your-org/snapvault/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting SnapVault API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database, cfg.Vision.EmbeddingDim)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		slog.Error("run migrations", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Clustering engine and registration reconciler share the store.
	matchEngine := engine.New(db, cfg.Vision.EmbeddingDim, cfg.Vision.MatchThreshold)
	reconciler := engine.NewReconciler(matchEngine)

	// WebSocket hub
	hub := ws.NewHub(api.GroupViewChecker(db))
	go hub.Run()

	// Consume match events from the workers and push them to clients.
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create match consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeMatches(ctx, "api-matches", func(ctx context.Context, msg jetstream.Msg) error {
		var match models.FaceMatch
		if err := json.Unmarshal(msg.Data(), &match); err != nil {
			return err
		}

		hub.BroadcastMatch(&dto.MatchEvent{
			Type:        "face_matched",
			PhotoID:     match.PhotoID,
			GroupID:     match.GroupID,
			IdentityID:  match.IdentityID,
			UserID:      match.OwnerUserID,
			Similarity:  float64(match.Similarity),
			NewIdentity: match.NewIdentity,
			Timestamp:   match.Timestamp,
		})
		return nil
	})
	if err != nil {
		slog.Warn("start match consumer", "error", err)
	}

	// Registration needs face extraction in-process. When the models are
	// missing the API still serves everything except /v1/auth/register.
	var extractFn engine.ExtractFunc
	extractor, err := vision.NewExtractor(cfg.Vision.ModelsDir, float32(cfg.Vision.DetectionThreshold))
	if err != nil {
		slog.Warn("vision init failed — registration will be unavailable", "error", err)
	} else {
		extractFn = extractor.ExtractFaces
		defer extractor.Close()
		slog.Info("vision models ready for registration")
	}

	tokens := auth.NewTokenManager(cfg.Server.JWTSecret, cfg.Server.TokenTTL)

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		DB:         db,
		MinIO:      minioStore,
		Producer:   producer,
		Hub:        hub,
		Tokens:     tokens,
		Reconciler: reconciler,
		ExtractFn:  extractFn,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
