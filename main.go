package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/giygas/repertory-api/config"
	"github.com/giygas/repertory-api/data"
	"github.com/giygas/repertory-api/handlers"
	"github.com/giygas/repertory-api/health"
	"github.com/giygas/repertory-api/logging"
	"github.com/giygas/repertory-api/repertory"
	"github.com/giygas/repertory-api/scheduler"
	"github.com/giygas/repertory-api/server"
	"github.com/giygas/repertory-api/validation"
	"github.com/joho/godotenv"
)

func main() {
	loadEnv()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logging.InitLoggerWithOptions(logging.Options{
		LogDir:         cfg.LogDir,
		Env:            cfg.Env,
		Level:          cfg.LogLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	})
	defer logging.Close()

	logging.Info("Configuration loaded",
		"env", cfg.Env.String(),
		"repertory_base_url", cfg.RepertoryBaseURL,
		"session_ttl", cfg.SessionTTL.String(),
	)

	// Upstream bridge; the first search performs the handshake
	client := repertory.NewFromConfig(cfg)

	store := data.NewCaseContainer()
	store.SetServerStartTime(time.Now())

	healthChecker := health.NewHealthChecker(store, client.Session())
	handler := handlers.NewHTTPHandler(client, store, validation.NewInputValidator(), healthChecker)

	sched := scheduler.NewScheduler(store, client.Session(), cfg.CaseIdleTTL, cfg.CaseSweepMinutes)
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	srv := server.NewServer(cfg, handler)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sched.Stop()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown error", "error", err)
	}
}

// loadEnv reads .env from the working directory, falling back to the
// executable's directory so the binary can be started from anywhere
func loadEnv() {
	if err := godotenv.Load(); err == nil {
		return
	}

	ex, err := os.Executable()
	if err != nil {
		return
	}
	// a missing .env is fine; the environment may already be set
	_ = godotenv.Load(filepath.Join(filepath.Dir(ex), ".env"))
}
