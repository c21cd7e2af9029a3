package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hkcm91/stickernest-access/internal/entities"
	"github.com/hkcm91/stickernest-access/internal/handlers"
	"github.com/hkcm91/stickernest-access/internal/infrastructure/config"
	"github.com/hkcm91/stickernest-access/internal/infrastructure/database"
	"github.com/hkcm91/stickernest-access/internal/infrastructure/metrics"
	"github.com/hkcm91/stickernest-access/internal/repositories/postgres"
	"github.com/hkcm91/stickernest-access/internal/services/access"
	"github.com/hkcm91/stickernest-access/internal/services/invitation"
	"github.com/hkcm91/stickernest-access/pkg/cache"
	"github.com/hkcm91/stickernest-access/pkg/cache/memorycache"
)

const defaultEnv = "dev"

// logNotifier logs created invitations instead of delivering them.
// Real delivery (email, in-app) belongs to an external service.
type logNotifier struct{}

func (logNotifier) InvitationCreated(ctx context.Context, inv *entities.Invitation) error {
	log.Printf("invitation created: canvas=%s target=%s role=%s", inv.CanvasID, inv.Target.String(), inv.Role)
	return nil
}

func main() {
	// Get environment from ENV variable or use default
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	// Initialize configuration
	if err := config.InitConfig(env); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pg.Close()

	log.Printf("Connected to database: %s@%s:%d/%s",
		cfg.Database.User,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database)

	// Initialize repositories
	canvasRepo := postgres.NewPostgresCanvasRepository(pg.DB)
	grantRepo := postgres.NewPostgresGrantRepository(pg.DB)
	invRepo := postgres.NewPostgresInvitationRepository(pg.DB)
	logRepo := postgres.NewPostgresPermissionLogRepository(pg.DB)

	// Optional effective-role cache
	var roleCache cache.Cache
	if cfg.Cache.Enabled {
		roleCache = memorycache.New(memorycache.Config{MaxSizeBytes: cfg.Cache.MaxMemoryBytes})
		defer roleCache.Close()
		log.Printf("Role cache enabled: max %d bytes, TTL %ds", cfg.Cache.MaxMemoryBytes, cfg.Cache.TTLSeconds)
	}

	// Initialize services
	var authorizer access.AuthorizerInterface
	if roleCache != nil {
		authorizer = access.NewAuthorizerWithCache(canvasRepo, grantRepo, roleCache, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	} else {
		authorizer = access.NewAuthorizer(canvasRepo, grantRepo)
	}
	store := access.NewStore(canvasRepo, grantRepo, logRepo, authorizer, roleCache)
	engine := invitation.NewEngine(canvasRepo, invRepo, logRepo, store, authorizer, logNotifier{}, invitation.Config{
		TokenBytes: cfg.Invitations.TokenBytes,
		DefaultTTL: time.Duration(cfg.Invitations.DefaultTTLHours) * time.Hour,
	})

	// Initialize metrics
	collector := metrics.NewCollector()
	if roleCache != nil {
		collector.SetCache(roleCache)
	}
	exporter := metrics.NewPrometheusExporter(collector)

	// Initialize HTTP handlers and router
	canvasHandler := handlers.NewCanvasHandler(canvasRepo, authorizer, store, exporter)
	invitationHandler := handlers.NewInvitationHandler(engine, exporter)
	router := handlers.NewRouter(handlers.RouterConfig{
		JWTSecret: cfg.Auth.JWTSecret,
		DB:        pg.DB,
		Canvas:    canvasHandler,
		Invites:   invitationHandler,
		Collector: collector,
		Exporter:  exporter,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Prometheus metrics listener on its own port
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: metricsMux,
	}

	// Refresh cache gauges periodically
	gaugeTicker := time.NewTicker(15 * time.Second)
	defer gaugeTicker.Stop()
	go func() {
		for range gaugeTicker.C {
			exporter.UpdateCacheMetrics()
		}
	}()

	// Start servers in goroutines
	serverErrors := make(chan error, 2)
	go func() {
		log.Printf("HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
	go func() {
		log.Printf("Metrics server listening on %s", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		log.Fatalf("Server error: %v", err)
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
		log.Println("Initiating graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Metrics server shutdown error: %v", err)
		}

		if err := pg.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
		}

		log.Println("Shutdown complete")
	}
}
