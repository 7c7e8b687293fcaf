package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/veridoc/veridoc-backend/internal/analysis/document"
	"github.com/veridoc/veridoc-backend/internal/analysis/events"
	"github.com/veridoc/veridoc-backend/internal/analysis/handler"
	"github.com/veridoc/veridoc-backend/internal/analysis/pipeline"
	"github.com/veridoc/veridoc-backend/internal/analysis/predictor"
	"github.com/veridoc/veridoc-backend/internal/analysis/reasoner"
	"github.com/veridoc/veridoc-backend/internal/analysis/repository"
	"github.com/veridoc/veridoc-backend/internal/analysis/service"
	"github.com/veridoc/veridoc-backend/internal/analysis/storage"
	"github.com/veridoc/veridoc-backend/pkg/config"
	"github.com/veridoc/veridoc-backend/pkg/database"
	"github.com/veridoc/veridoc-backend/pkg/httputil"
	"github.com/veridoc/veridoc-backend/pkg/logger"
	"github.com/veridoc/veridoc-backend/pkg/messaging"
	"github.com/veridoc/veridoc-backend/pkg/objectstore"
)

func main() {
	// Load configuration
	cfg, err := config.LoadWithValidation("analysis-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("analysis-service", cfg.Server.Environment)
	log.Info().Msg("starting Analysis Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeAnalysisEvents, "analysis-service", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}
	eventPublisher := events.NewAnalysisEventPublisher(publisher, log)

	// Connect to the object store
	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := objectstore.New(startCtx, &cfg.Storage)
	startCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to object store")
	}

	// Forensic sidecars and the reasoning agent
	accessor := document.NewClient(cfg.Forensics.DocumentServiceURL, cfg.Forensics.RequestTimeout)
	segmentation := predictor.NewSegmentationClient(cfg.Forensics.SegmentationURL, cfg.Forensics.RequestTimeout, log)
	sensorTrust := predictor.NewSensorTrustClient(cfg.Forensics.SensorTrustURL, cfg.Forensics.RequestTimeout, log)
	rsn := reasoner.NewOpenAIReasoner(cfg.Reasoner.APIKey, cfg.Reasoner.Model, log)

	// Pipelines
	pipelineCfg := pipeline.ConfigFromAnalysis(cfg.Analysis)
	trust := document.TrustContext{AllowFetching: cfg.Forensics.RevocationFetching}

	visual := pipeline.NewVisualAnalyzer(segmentation, sensorTrust, pipelineCfg, log)
	structural := pipeline.NewStructuralAnalyzer(accessor, visual, pipelineCfg, log)
	crypto := pipeline.NewCryptographicAnalyzer(accessor, accessor, trust, log)
	router := pipeline.NewRouter(accessor, log)
	fusion := pipeline.NewFusionEngine(log)

	// Task state and local artifact retention
	tasks := storage.NewTaskStore(cfg.Analysis.RetentionWindow)
	sweeper := storage.NewSweeper(cfg.Analysis.UploadDir, cfg.Analysis.RetentionWindow, cfg.Analysis.SweepInterval, log)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweeper.Start(sweepCtx)

	auditRepo := repository.NewAuditRepository(db)

	svc := service.NewService(router, structural, visual, crypto, fusion, rsn, store,
		tasks, auditRepo, eventPublisher, cfg.Analysis.UploadDir, log)

	analysisHandler := handler.NewHandler(svc, auditRepo, cfg.Analysis.UploadDir, cfg.Analysis.MaxUploadSize, log)

	// Create router
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))

	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if origin == "http://localhost:3000" || origin == "http://localhost:5173" {
				return true
			}
			if origin == "https://veridoc.app" || origin == "https://www.veridoc.app" {
				return true
			}
			return false
		},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":      "healthy",
			"service":     "analysis-service",
			"database":    db.Health(r.Context()),
			"rabbitmq":    rmq.Health(),
			"objectstore": store.Health(r.Context()),
		})
	})

	// REST endpoints
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/documents", analysisHandler.Upload)
		r.Get("/tasks/{taskID}", analysisHandler.GetTask)
		r.Get("/artifacts/{name}", analysisHandler.GetArtifact)
		r.Get("/audits", analysisHandler.ListAudits)
	})

	// Analysis session stream
	r.Get("/ws/analyze/{taskID}", analysisHandler.AnalyzeSession)

	// Create server. Write deadlines stay unset: websocket sessions outlive
	// any fixed timeout while a slow pipeline runs.
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	stopSweeper()
	sweeper.Wait()

	log.Info().Msg("server stopped")
}
