// Command nebula-mcp runs the tool-call surface over
// github.com/mark3labs/mcp-go's streamable HTTP transport, sharing every
// collaborator cmd/nebula-server wires up so both transports operate
// against the same store, enum registry, authenticator, scope mediator,
// approval engine, and executor registry.
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

	"github.com/mark3labs/mcp-go/server"
	"github.com/redis/go-redis/v9"

	"github.com/nebula-core/nebula/pkg/approval"
	"github.com/nebula-core/nebula/pkg/auth"
	"github.com/nebula-core/nebula/pkg/config"
	"github.com/nebula-core/nebula/pkg/enums"
	"github.com/nebula-core/nebula/pkg/executor"
	"github.com/nebula-core/nebula/pkg/mcptool"
	"github.com/nebula-core/nebula/pkg/ratelimit"
	"github.com/nebula-core/nebula/pkg/scope"
	"github.com/nebula-core/nebula/pkg/store"
	"github.com/nebula-core/nebula/pkg/validate"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := slog.Default()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Printf("[nebula-mcp] config: %v", err)
		return 1
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
		log.Printf("[nebula-mcp] store: %v", err)
		return 1
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		log.Printf("[nebula-mcp] store ping: %v", err)
		return 1
	}

	registry, err := enums.Load(ctx, db)
	if err != nil {
		log.Printf("[nebula-mcp] enums: %v", err)
		return 1
	}

	schemas, err := validate.NewSchemaRegistry()
	if err != nil {
		log.Printf("[nebula-mcp] schemas: %v", err)
		return 1
	}

	authenticator := auth.NewAuthenticator(db, db.DB, registry, cfg.BootstrapEnabled)
	checker := scope.NewChecker(db)
	executors := executor.NewRegistry()

	var limiter ratelimit.Limiter
	if redisURL := os.Getenv("NEBULA_REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Printf("[nebula-mcp] redis url: %v", err)
			return 1
		}
		limiter = ratelimit.NewRedisLimiter(redis.NewClient(opts), "nebula:ratelimit")
	} else {
		limiter = ratelimit.NewMemoryLimiter()
	}

	approvalEngine := approval.New(db, executors, registry, schemas, limiter)

	srv := mcptool.NewServer(mcptool.Deps{
		Store:     db,
		Enums:     registry,
		Auth:      authenticator,
		Scope:     checker,
		Approval:  approvalEngine,
		Executors: executors,
		Schemas:   schemas,
	})

	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(srv, server.WithHTTPContextFunc(mcptool.HTTPContextFunc)))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	addr := ":" + mcpPort()
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("nebula-mcp listening", "addr", addr)
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

func mcpPort() string {
	if p := os.Getenv("NEBULA_MCP_PORT"); p != "" {
		return p
	}
	return "8090"
}
