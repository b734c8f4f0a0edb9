package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/valterpcjria-cloud/doi-smart/internal/api"
	"github.com/valterpcjria-cloud/doi-smart/internal/auditor"
	"github.com/valterpcjria-cloud/doi-smart/internal/config"
	"github.com/valterpcjria-cloud/doi-smart/internal/logging"
	"github.com/valterpcjria-cloud/doi-smart/internal/service"
	"github.com/valterpcjria-cloud/doi-smart/internal/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("DOI_CONFIG"), "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.Server.Env, cfg.Log.Level)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Layers
	var (
		records service.RecordStore
		certs   service.CertificateStore
	)
	switch cfg.Database.Driver {
	case "memory":
		mem := store.NewMemoryStore()
		records, certs = mem, mem.Certificates()
		logger.Warn("using in-memory store; data is lost on restart")
	default:
		db, err := store.NewStore(cfg.Database.Source)
		if err != nil {
			logger.Fatal("unable to connect to database", zap.Error(err))
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			logger.Fatal("schema bootstrap failed", zap.Error(err))
		}
		records, certs = db, db.Certificates()
	}

	var judge service.Auditor
	completer, err := auditor.NewCompleter(ctx, cfg.AI)
	switch {
	case errors.Is(err, auditor.ErrMissingAPIKey):
		logger.Warn("ai api key missing; pre-validation disabled", zap.String("provider", cfg.AI.Provider))
	case err != nil:
		logger.Fatal("ai provider setup failed", zap.Error(err))
	default:
		judge = auditor.New(completer,
			auditor.WithRateLimit(cfg.AI.RequestsPerMinute),
			auditor.WithTimeout(cfg.AI.Timeout),
			auditor.WithLogger(logger.Named("auditor")),
		)
	}

	mode := service.Lenient
	if cfg.StrictValidation() {
		mode = service.Strict
	}
	gate := service.NewValidationGate(judge, mode, logger.Named("validation"))

	transmitter, err := service.NewTransmitter(gate,
		service.NewCertificateAuthenticator(certs),
		service.SimulatedGateway{Delay: cfg.Transmission.SubmitDelay},
		service.WithDelays(cfg.Transmission.HandshakeDelay, cfg.Transmission.PayloadDelay),
		service.WithLogger(logger.Named("transmitter")),
	)
	if err != nil {
		logger.Fatal("transmitter setup failed", zap.Error(err))
	}
	reconciler, err := service.NewStatusReconciler(records, logger.Named("reconciler"))
	if err != nil {
		logger.Fatal("reconciler setup failed", zap.Error(err))
	}
	transmissions, err := service.NewTransmissionService(records,
		service.NewBatchCoordinator(transmitter, logger.Named("batch")),
		reconciler,
		logger.Named("transmissions"),
	)
	if err != nil {
		logger.Fatal("transmission service setup failed", zap.Error(err))
	}

	handler := api.NewHandler(records, certs, gate, transmissions, logger.Named("api"))

	// Router
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	handler.Register(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("server starting",
		zap.String("port", cfg.Server.Port),
		zap.String("driver", cfg.Database.Driver),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("validation_mode", cfg.Validation.Mode),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
