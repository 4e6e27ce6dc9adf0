package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/credits"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/projects"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/queue"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/render"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/config"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/storage/db"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/telemetry"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/workerproc"
)

const (
	defaultReceiveWaitSeconds = 5
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
)

func main() {
	cfg := config.Load()

	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Fatal("REDIS_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	receiveWait := time.Duration(envInt("WORKER_RECEIVE_WAIT_SECONDS", defaultReceiveWaitSeconds)) * time.Second
	concurrency := envInt("WORKER_CONCURRENCY", defaultWorkerConcurrency)
	shutdownTimeout := time.Duration(envInt("WORKER_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	queueClient, err := queue.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("queue client: %v", err)
	}
	defer queueClient.Close()

	renderSvc, err := buildRenderService(ctx, cfg)
	if err != nil {
		log.Fatalf("build render service: %v", err)
	}

	sem := make(chan struct{}, maxInt(1, concurrency))
	var wg sync.WaitGroup

	log.Printf("worker started concurrency=%d wait=%s", concurrency, receiveWait)

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		body, ok, err := queueClient.Receive(ctx, receiveWait)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			log.Printf("receive message: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			continue
		}

		select {
		case <-ctx.Done():
			break pollLoop
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(payload string) {
			defer wg.Done()
			defer func() { <-sem }()
			handleMessage(ctx, renderSvc, payload)
		}(body)
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight claims", shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight claims")
	}
}

func buildRenderService(ctx context.Context, cfg config.Config) (*render.Service, error) {
	var sqlDB *sql.DB
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		conn, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
		if err != nil {
			if cfg.Env != "dev" && cfg.Env != "local" {
				return nil, err
			}
			log.Printf("database connect failed; using in-memory repositories: %v", err)
		} else {
			sqlDB = conn
		}
	}

	var (
		renderRepo  render.Repo
		projectRepo projects.Repo
		creditSvc   *credits.Service
	)
	if sqlDB != nil {
		renderRepo = &render.PGRepo{DB: sqlDB}
		projectRepo = &projects.PGRepo{DB: sqlDB}
		creditSvc = credits.NewServiceWithStore(credits.NewPGStore(sqlDB), cfg.CreditsStartingGrant)
	} else {
		renderRepo = render.NewMemoryRepo()
		projectRepo = projects.NewMemoryRepo()
		creditSvc = credits.NewService(cfg.CreditsStartingGrant)
	}

	return render.NewService(renderRepo, projectRepo, creditSvc, nil), nil
}

func handleMessage(ctx context.Context, svc *render.Service, body string) {
	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		fields := map[string]any{
			"body_len":    meta.BodyLen,
			"body_sha256": meta.BodySHA,
			"error":       err.Error(),
		}
		switch err.(type) {
		case workerproc.ErrEmptyBody:
			telemetry.Error("worker.render.empty_body", fields)
		case workerproc.ErrDecode:
			telemetry.Error("worker.render.decode_failed", fields)
		case workerproc.ErrMissingJobID:
			telemetry.Error("worker.render.missing_id", fields)
		default:
			telemetry.Error("worker.render.parse_failed", fields)
		}
		return
	}

	telemetry.Info("worker.render.received", map[string]any{
		"job_id":     decoded.JobID,
		"project_id": decoded.ProjectID,
		"request_id": decoded.RequestID,
	})

	ctxWithParsed := workerproc.WithParsedMessage(ctx, decoded)
	if err := workerproc.HandleMessage(ctxWithParsed, svc, body); err != nil {
		fields := map[string]any{
			"job_id":     decoded.JobID,
			"request_id": decoded.RequestID,
			"error":      err.Error(),
		}
		telemetry.Error("worker.render.claim_failed", fields)
		return
	}

	telemetry.Info("worker.render.claimed", map[string]any{
		"job_id":     decoded.JobID,
		"request_id": decoded.RequestID,
	})
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
