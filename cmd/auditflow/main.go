package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/auditflow/auditflow/internal/adapter/http"
	"github.com/auditflow/auditflow/internal/adapter/persistence"
	"github.com/auditflow/auditflow/internal/adapter/redisx"
	"github.com/auditflow/auditflow/internal/config"
	"github.com/auditflow/auditflow/internal/logger"
	"github.com/auditflow/auditflow/internal/ports"
	"github.com/auditflow/auditflow/internal/usecase"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// Version and build information
var (
	Version   = "development"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	envLoaded := godotenv.Load() == nil

	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Printf("Auditflow compliance audit service\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		ServiceName: "auditflow",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info(ctx, "Starting auditflow", map[string]interface{}{
		"version":     Version,
		"environment": cfg.Server.Environment,
		"dotenv":      envLoaded,
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "Server terminated", err, nil)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	db, err := initDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info(ctx, "Database connection established", nil)

	store := persistence.NewPostgresStore(db)

	var (
		publisher ports.EventPublisher = ports.NoopPublisher{}
		limiter   httpadapter.RateLimiter
	)
	if cfg.Redis.Enabled {
		client, err := redisx.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		log.Info(ctx, "Redis connection established", map[string]interface{}{"addr": cfg.GetRedisAddr()})

		publisher, limiter = initRedisAdapters(cfg, client, log)
	}

	server := httpadapter.NewServer(
		httpadapter.ServerConfig{
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
			CORSOrigins:  cfg.Security.CORSOrigins,
			AuthRequired: cfg.Security.AuthRequired,
		},
		initUseCases(store, publisher, log),
		httpadapter.Options{
			Logger:      log,
			Verifier:    httpadapter.NewTokenVerifier(cfg.Security.JWTSecret),
			RateLimiter: limiter,
			Health:      store,
		},
	)

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "Server listening", map[string]interface{}{"host": cfg.Server.Host, "port": cfg.Server.Port})
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info(ctx, "Shutting down server", map[string]interface{}{"signal": sig.String()})
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	log.Info(ctx, "Server stopped", nil)
	return nil
}

// initDatabase opens and verifies the PostgreSQL pool
func initDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxConnections / 2)
	db.SetConnMaxIdleTime(cfg.Database.MaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// initRedisAdapters builds the Redis-backed publisher and limiter that the
// configuration turns on
func initRedisAdapters(cfg *config.Config, client *redis.Client, log logger.Logger) (ports.EventPublisher, httpadapter.RateLimiter) {
	var (
		publisher ports.EventPublisher = ports.NoopPublisher{}
		limiter   httpadapter.RateLimiter
	)
	if cfg.Events.Enabled {
		publisher = redisx.NewEventPublisher(client, cfg.Events.Channel)
	}
	if cfg.Security.RateLimitEnabled {
		limiter = redisx.NewRateLimiter(client, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow, log)
	}
	return publisher, limiter
}

// initUseCases wires every use case onto the same unit of work
func initUseCases(uow ports.UnitOfWork, publisher ports.EventPublisher, log logger.Logger) httpadapter.UseCases {
	return httpadapter.UseCases{
		Audits:    usecase.NewAuditUseCase(uow, publisher, log),
		Responses: usecase.NewResponseUseCase(uow, publisher, log),
		Standards: usecase.NewStandardUseCase(uow, publisher, log),
		Scoring:   usecase.NewScoringUseCase(uow, log),
	}
}
