package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"planktovision/internal/auth"
	"planktovision/internal/config"
	"planktovision/internal/database"
	"planktovision/internal/detect"
	"planktovision/internal/pipeline"
	"planktovision/internal/policy"
	"planktovision/internal/server"
	"planktovision/internal/ws"
)

func main() {
	var (
		portF  = flag.String("port", "", "HTTP port (overrides PORT)")
		debugF = flag.Bool("debug", false, "Enable debug request logging")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[planktovision] ", log.Ltime)

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatalf("Invalid configuration: %s", err)
	}
	if *portF != "" {
		cfg.Port = *portF
	}

	// Safety policy: file-based when configured, built-in map otherwise.
	var pol *policy.Policy
	if cfg.SafetyPolicyPath != "" {
		pol, err = policy.Load(cfg.SafetyPolicyPath)
		if err != nil {
			logger.Fatalf("Failed to load safety policy %s: %s", cfg.SafetyPolicyPath, err)
		}
		logger.Printf("Loaded safety policy from %s (%d classes)", cfg.SafetyPolicyPath, len(pol.Tiers))
	} else {
		pol = policy.Default()
	}

	db, err := database.New(cfg.DBPath)
	if err != nil {
		logger.Fatalf("Failed to open database: %s", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %s", err)
	}

	// Initialize the detector registry.
	registry := detect.NewRegistry()
	defer registry.Close()

	var detector pipeline.Detector
	switch cfg.Detector {
	case "mock":
		detector = detect.NewMockAdapter(nil, 1)
		logger.Printf("Using mock detector (no inference backend)")
	default:
		detector = detect.NewYOLOAdapter(detect.YOLOConfig{
			Endpoint:            cfg.DetectEndpoint,
			ConfidenceThreshold: cfg.Confidence,
			IoUThreshold:        cfg.IoU,
			MaxDetections:       cfg.MaxDetections,
			Timeout:             cfg.InferTimeout,
		})
		logger.Printf("Using YOLO detector at %s", cfg.DetectEndpoint)
	}
	if err := registry.Register(detector); err != nil {
		logger.Fatalf("Failed to register detector: %s", err)
	}

	var classifier pipeline.Classifier
	if cfg.ClassifyEndpoint != "" {
		classifier = detect.NewHTTPClassifier(cfg.ClassifyEndpoint, cfg.InferTimeout)
		logger.Printf("Using classifier at %s", cfg.ClassifyEndpoint)
	}

	analyzer := pipeline.NewAnalyzer(pipeline.AnalyzerConfig{
		Detector:   detector,
		Classifier: classifier,
		Sink:       db,
		Policy:     pol,
		ResultsDir: cfg.ResultsDir,
		PublicBase: "/static/results",
		Logger:     logger,
	})

	hub := ws.NewAnalysisHub(logger)

	authenticator := auth.NewAuthenticator(cfg.AdminUser, cfg.AdminPass, cfg.JWTSecret, cfg.JWTExpiry)
	if !authenticator.IsEnabled() {
		logger.Printf("ADMIN_PASS not set, admin endpoints disabled")
	}

	srv := server.New(cfg, analyzer, db, registry, hub, authenticator, logger)

	// Create channel used by both the signal handler and server goroutines
	// to notify the main goroutine when to stop the server.
	errc := make(chan error)

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())

	handleHTTPServer(ctx, srv, cfg, &wg, errc, logger, *debugF)

	logger.Printf("exiting (%v)", <-errc)

	// Send cancellation signal to the goroutines.
	cancel()
	wg.Wait()
	logger.Println("exited")
}
