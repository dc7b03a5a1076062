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
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/snapvault/internal/config"
	"github.com/your-org/snapvault/internal/engine"
	"github.com/your-org/snapvault/internal/models"
	"github.com/your-org/snapvault/internal/observability"
	"github.com/your-org/snapvault/internal/queue"
	"github.com/your-org/snapvault/internal/storage"
	"github.com/your-org/snapvault/internal/vision"
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

	slog.Info("starting SnapVault face worker",
		"workers", cfg.Vision.WorkerCount,
		"cpu_cores", runtime.NumCPU(),
	)

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

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Load vision models
	extractor, err := vision.NewExtractor(cfg.Vision.ModelsDir, float32(cfg.Vision.DetectionThreshold))
	if err != nil {
		slog.Error("init vision models", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	// Clustering pipeline
	matchEngine := engine.New(db, cfg.Vision.EmbeddingDim, cfg.Vision.MatchThreshold)
	processor := engine.NewProcessor(matchEngine, db, minioStore, extractor.ExtractFaces)
	processor.Notify = func(ctx context.Context, match models.FaceMatch) {
		if err := producer.PublishMatch(ctx, match.GroupID.String(), match); err != nil {
			slog.Error("publish match event", "photo", match.PhotoID, "error", err)
		}
	}

	// Create NATS consumer
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start consuming face tasks
	err = consumer.ConsumeFaceTasks(ctx, "face-workers", func(ctx context.Context, msg jetstream.Msg) error {
		var task models.FaceTask
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			slog.Error("unmarshal face task", "error", err)
			return nil // Don't retry on unmarshal errors
		}

		if err := processor.ProcessPhoto(ctx, task); err != nil {
			return fmt.Errorf("process photo %s: %w", task.PhotoID, err)
		}

		return nil
	}, cfg.Vision.WorkerCount)
	if err != nil {
		slog.Error("start face task consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}
