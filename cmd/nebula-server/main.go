// Command nebula-server runs the REST surface: it wires the store,
// enum registry, authenticator, scope mediator, approval engine, and
// executor registry into a pkg/api.Server and serves it over HTTP,
// initializing each subsystem in turn and blocking on a shutdown signal.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nebula-core/nebula/pkg/api"
	"github.com/nebula-core/nebula/pkg/approval"
	"github.com/nebula-core/nebula/pkg/auth"
	"github.com/nebula-core/nebula/pkg/blobstore"
	"github.com/nebula-core/nebula/pkg/config"
	"github.com/nebula-core/nebula/pkg/enums"
	"github.com/nebula-core/nebula/pkg/executor"
	"github.com/nebula-core/nebula/pkg/observability"
	"github.com/nebula-core/nebula/pkg/ratelimit"
	"github.com/nebula-core/nebula/pkg/scope"
	"github.com/nebula-core/nebula/pkg/store"
	"github.com/nebula-core/nebula/pkg/validate"
)

func main() {
	os.Exit(run())
}

// newBlobStore selects the File/Entity blob backend: S3 when
// NEBULA_BLOB_BUCKET is set, local disk otherwise (development default).
func newBlobStore(ctx context.Context) (blobstore.Store, error) {
	if bucket := os.Getenv("NEBULA_BLOB_BUCKET"); bucket != "" {
		return blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:   bucket,
			Region:   os.Getenv("NEBULA_BLOB_REGION"),
			Endpoint: os.Getenv("NEBULA_BLOB_ENDPOINT"),
			Prefix:   os.Getenv("NEBULA_BLOB_PREFIX"),
		})
	}
	root := os.Getenv("NEBULA_BLOB_ROOT")
	if root == "" {
		root = "data/blobs"
	}
	return blobstore.NewLocalStore(root)
}

func run() int {
	logger := slog.Default()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Printf("[nebula-server] config: %v", err)
		return 1
	}

	otelCfg := observability.DefaultConfig()
	otelCfg.Environment = os.Getenv("NEBULA_ENV")
	if endpoint := os.Getenv("NEBULA_OTLP_ENDPOINT"); endpoint != "" {
		otelCfg.OTLPEndpoint = endpoint
		otelCfg.Enabled = true
	} else {
		otelCfg.Enabled = false
	}
	provider, err := observability.New(ctx, otelCfg)
	if err != nil {
		log.Printf("[nebula-server] observability: %v (continuing without telemetry)", err)
	}
	if provider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Error("observability shutdown failed", "error", err)
			}
		}()
	}

	driver := store.DriverPostgres
	if cfg.StoreDriver == "sqlite" {
		driver = store.DriverSQLite
	}
	db, err := store.Open(store.Config{
		Driver:           driver,
		DSN:              cfg.DSN(),
		MaxOpenConns:     25,
		MaxIdleConns:     5,
		ConnMaxLifetime:  30 * time.Minute,
		StatementTimeout: 10 * time.Second,
	})
	if err != nil {
		log.Printf("[nebula-server] store: %v", err)
		return 1
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		log.Printf("[nebula-server] store ping: %v", err)
		return 1
	}
	logger.Info("store connected", "driver", cfg.StoreDriver)

	registry, err := enums.Load(ctx, db)
	if err != nil {
		log.Printf("[nebula-server] enums: %v", err)
		return 1
	}
	logger.Info("enum registry loaded")

	schemas, err := validate.NewSchemaRegistry()
	if err != nil {
		log.Printf("[nebula-server] schemas: %v", err)
		return 1
	}

	authenticator := auth.NewAuthenticator(db, db.DB, registry, cfg.BootstrapEnabled)
	checker := scope.NewChecker(db)
	executors := executor.NewRegistry()

	var limiter ratelimit.Limiter
	if redisURL := os.Getenv("NEBULA_REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Printf("[nebula-server] redis url: %v", err)
			return 1
		}
		limiter = ratelimit.NewRedisLimiter(redis.NewClient(opts), "nebula:ratelimit")
		logger.Info("rate limiter backed by redis")
	} else {
		limiter = ratelimit.NewMemoryLimiter()
		logger.Info("rate limiter backed by in-memory shards (single instance only)")
	}

	approvalEngine := approval.New(db, executors, registry, schemas, limiter)

	server := api.NewServer(db, registry, authenticator, checker, approvalEngine, executors, schemas, limiter)
	if cfg.StoreDriver == "postgres" {
		server.IdempotencyStore = api.NewPostgresIdempotencyStore(db.DB, 10*time.Minute)
		logger.Info("idempotency store backed by postgres")
	}

	blobs, err := newBlobStore(ctx)
	if err != nil {
		log.Printf("[nebula-server] blobstore: %v", err)
		return 1
	}
	server.Blobs = blobs
	server.Telemetry = provider

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("nebula-server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return 1
	}
	return 0
}
