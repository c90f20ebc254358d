package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"fleetmon/pkg/api"
	"fleetmon/pkg/audit"
	"fleetmon/pkg/auth"
	"fleetmon/pkg/config"
	"fleetmon/pkg/configmgr"
	"fleetmon/pkg/database"
	"fleetmon/pkg/devsync"
	"fleetmon/pkg/facejob"
	"fleetmon/pkg/ingest"
	"fleetmon/pkg/liveness"
	"fleetmon/pkg/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load Configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize Services
	syslog := audit.NewLogger(db)
	media := storage.NewMediaStore(cfg.MediaRoot)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTLHours)
	authenticator := auth.NewAuthenticator(db, tokens, cfg.RegistrationSecret, syslog)
	coordinator := devsync.NewCoordinator(db, media, cfg.MaxBatchSize, cfg.MaxImageBytes)
	configs := configmgr.NewManager(db)
	faceJob := facejob.NewStatusReader(cfg.FaceJobDir)

	monitor := liveness.NewMonitor(db, syslog,
		cfg.OfflineThresholdMinutes, cfg.ErrorThresholdMinutes, cfg.LivenessSweepSeconds)
	pipeline := ingest.NewPipeline(db, media, syslog,
		cfg.IngestDropDir, cfg.IngestGraceMs, cfg.IngestSweepSeconds)

	// Start background sweeps
	go monitor.Run(ctx)
	go pipeline.Run(ctx)

	// Setup Router
	router := gin.Default()
	deviceHandler := api.NewDeviceHandler(authenticator, coordinator, configs, db, cfg.MaxImageBytes)
	adminHandler := api.NewAdminHandler(pipeline, monitor, faceJob)
	api.RegisterRoutes(router, tokens, deviceHandler, adminHandler)

	// Start Server
	slog.Info("Starting server", "component", "Server", "address", cfg.ServerAddress)
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		err = router.RunTLS(cfg.ServerAddress, cfg.TLSCertFile, cfg.TLSKeyFile)
	} else {
		err = router.Run(cfg.ServerAddress)
	}
	if err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
