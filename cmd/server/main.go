package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/api"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/audit"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/auth"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/config"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/fusion"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/ingest"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/scenario"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/scoring"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/storage/sqlite"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/websocket"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting IAMD threat detection platform",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// The platform runs as a single binary but its services talk to each
	// other over HTTP, so each hop carries the caller's bearer token. Empty
	// URLs default to the local listener.
	selfURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	if cfg.Ingest.FusionURL == "" {
		cfg.Ingest.FusionURL = selfURL
	}
	if cfg.Fusion.ScoringURL == "" {
		cfg.Fusion.ScoringURL = selfURL
	}
	if cfg.Audit.URL == "" {
		cfg.Audit.URL = selfURL
	}

	// Generate today's database filename
	today := time.Now().Format("2006-01-02")
	dbFilename := fmt.Sprintf("iamd-%s.db", today)
	dbPath := filepath.Join(cfg.Storage.SQLiteBasePath, dbFilename)

	// Ensure the directory exists
	if err := os.MkdirAll(cfg.Storage.SQLiteBasePath, 0755); err != nil {
		log.Error("Failed to create database directory", logger.Error(err), logger.String("path", cfg.Storage.SQLiteBasePath))
		os.Exit(1)
	}

	log.Info("Using daily database", logger.String("path", dbPath))

	eventStorage, err := sqlite.NewEventStorage(dbPath, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer eventStorage.Close()

	auditService := audit.NewService(eventStorage, log)

	// Token issuance and verification
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLSeconds)*time.Second)

	// Create WebSocket server for the COP feed
	wsServer := websocket.NewServer(log)
	go wsServer.Run()

	// Per-service audit emitters, all posting to the audit sink
	auditTimeout := time.Duration(cfg.Audit.TimeoutSecs) * time.Second
	ingestEmitter := audit.NewEmitter(cfg.Audit.URL, "sensor-ingest", auditTimeout, log)
	fusionEmitter := audit.NewEmitter(cfg.Audit.URL, "track-fusion", auditTimeout, log)
	scoringEmitter := audit.NewEmitter(cfg.Audit.URL, "threat-scoring", auditTimeout, log)

	// Track fusion engine and service
	fusionEngine := fusion.NewEngine(cfg.Fusion.CorrelationRadiusKM, cfg.Fusion.ConfidenceStep, log)
	scoringClient := scoring.NewClient(cfg.Fusion.ScoringURL, time.Duration(cfg.Fusion.PushTimeoutSecs)*time.Second, log)
	fusionService := fusion.NewService(
		fusionEngine,
		fusionEmitter,
		scoringClient,
		wsServer,
		time.Duration(cfg.Fusion.PushTimeoutSecs)*time.Second,
		cfg.Fusion.MaxTracksInAPI,
		log,
	)

	// Threat scoring engine and service
	rulesSource := scoring.NewFileRulesSource(cfg.Scoring.RulesPath)
	policy := scoring.NewRandomPolicy(time.Now().UnixNano())
	scoringEngine := scoring.NewEngine(rulesSource, policy, cfg.Scoring.MaxActiveThreats, log)
	scoringService := scoring.NewService(scoringEngine, scoringEmitter, wsServer, cfg.Scoring.MaxThreatsInAPI, log)

	// Sensor ingest front door
	ingestService := ingest.NewService(
		cfg.Ingest.FusionURL,
		time.Duration(cfg.Ingest.ForwardTimeoutSecs)*time.Second,
		ingestEmitter,
		log,
	)

	// Demo scenario generator
	scenarioService := scenario.NewService(
		ingestService,
		verifier,
		cfg.Station.Latitude,
		cfg.Station.Longitude,
		cfg.Scenario.SpreadMiles,
		log,
	)

	// Wire the COP snapshot handler into the WebSocket server
	wsHandler := api.NewWebSocketHandler(fusionService, scoringService, log)
	wsServer.SetMessageHandler(wsHandler)

	// Create API router
	handler := api.NewHandler(ingestService, fusionService, scoringService, auditService, scenarioService, verifier, cfg, log, wsServer)
	router := api.NewRouter(handler, verifier, cfg.Auth.IngestRoles, log)

	// --- Setup for multiple HTTP servers ---
	var servers []*http.Server
	allPorts := []int{cfg.Server.Port}
	if len(cfg.Server.AdditionalPorts) > 0 {
		allPorts = append(allPorts, cfg.Server.AdditionalPorts...)
	}

	log.Info("Configured listener ports", logger.Any("ports", allPorts))

	for _, port := range allPorts {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)
		server := &http.Server{
			Addr:         addr,
			Handler:      router.Routes(), // All servers use the same main router
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}
		servers = append(servers, server)

		go func(s *http.Server) {
			log.Info("Starting HTTP server", logger.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error on startup", logger.String("addr", s.Addr), logger.Error(err))
			}
		}(server)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	// Shutdown all HTTP servers
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			log.Info("Attempting to shutdown HTTP server", logger.String("addr", srv.Addr))
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.String("addr", srv.Addr), logger.Error(err))
			} else {
				log.Info("HTTP server shutdown complete", logger.String("addr", srv.Addr))
			}
		}(s)
	}
	wg.Wait()

	log.Info("Server gracefully stopped")
}
