package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cloak/internal/anonymize"
	"cloak/internal/audit"
	"cloak/internal/config"
	"cloak/internal/detect"
	"cloak/internal/redact"
	"cloak/internal/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("cloakd failed: %v", err)
	}
}

func run() error {
	// Best effort; a missing .env is the normal case.
	_ = godotenv.Load()

	cfgPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if err := config.EnsureConfigDir(cfgPath); err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	auditLogger, err := audit.NewJSONLLogger(cfg.LogFile)
	if err != nil {
		return err
	}

	detector := buildDetector(cfg)
	anonymizer := anonymize.New(detector, logger)

	srv := server.New(cfg.Addr, anonymizer, auditLogger, logger, server.Options{
		Anonymize: anonymize.Options{
			MaxChars:      cfg.MaxChars,
			OverlapChars:  cfg.OverlapChars,
			MinConfidence: cfg.MinConfidence,
			Strategy:      redact.Strategy(cfg.Strategy),
			Labels:        cfg.Labels,
			LabelPriority: cfg.LabelPriority,
			DetectTimeout: cfg.DetectTimeout(),
		},
		AuditLogPath: cfg.LogFile,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "ner_enabled", cfg.NEREnabled)
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	case err := <-errCh:
		return err
	}
}

// buildDetector composes the regex detectors with the NER model when enabled.
// The NER detector loads lazily, so a missing model only fails requests that
// actually need inference.
func buildDetector(cfg config.Config) detect.Detector {
	detectors := detect.Multi{
		detect.EmailDetector{},
		detect.PhoneDetector{},
	}
	if cfg.NEREnabled {
		detectors = append(detectors, detect.NewNERDetector(detect.NERConfig{ModelDir: cfg.ModelDir}))
	}
	return detectors
}
