package main

import (
	"context"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	argusconsole "github.com/MegaGrindStone/argus-console"
	"github.com/MegaGrindStone/argus-console/internal/config"
	"github.com/MegaGrindStone/argus-console/internal/handlers"
	"github.com/MegaGrindStone/argus-console/internal/models"
	"github.com/MegaGrindStone/argus-console/internal/services"
)

func main() {
	cfgPath := flag.String("config", "", "path to config.yaml (default: $ARGUS_CONFIG or the user config dir)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("Failed to load config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	logger := cfg.Logger(os.Stderr)

	socket, err := services.NewSocketIO(cfg.BackendURL, logger)
	if err != nil {
		logger.Error("Failed to create backend channel", slog.String("err", err.Error()))
		os.Exit(1)
	}
	backend := services.NewBackend(cfg.BackendURL, logger)

	m, err := handlers.NewMain(socket, models.NewMarkdownRenderer(cfg.CodeStyle), backend, cfg.ConsoleOptions(), logger)
	if err != nil {
		logger.Error("Failed to create handlers", slog.String("err", err.Error()))
		os.Exit(1)
	}

	logger.Info("Connecting to Argus backend", slog.String("url", cfg.BackendURL))

	connectCtx, connectCancel := context.WithCancel(context.Background())
	defer connectCancel()

	ready := make(chan struct{})
	errs := make(chan error, 1)

	go func() {
		errs <- socket.Connect(connectCtx, ready)
	}()

	select {
	case err := <-errs:
		logger.Error("Failed to connect to Argus backend", slog.String("err", errString(err)))
		os.Exit(1)
	case <-ready:
	}

	logger.Info("Connected to Argus backend")

	go func() {
		// Reconnecting is left to a restart; the page keeps serving and shows the disconnect.
		if err := <-errs; err != nil {
			logger.Error("Backend channel closed", slog.String("err", err.Error()))
			return
		}
		logger.Warn("Backend channel closed")
	}()

	// Serve static files
	staticFS, err := fs.Sub(argusconsole.StaticFS, "static")
	if err != nil {
		logger.Error("Failed to open static files", slog.String("err", err.Error()))
		os.Exit(1)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	// Create custom mux
	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/sse", m.HandleSSE)
	mux.HandleFunc("/messages", m.HandleMessages)
	mux.HandleFunc("/feedback", m.HandleFeedback)
	mux.HandleFunc("/personas", m.HandlePersonas)
	mux.HandleFunc("/toggles/{sense}", m.HandleToggle)
	mux.HandleFunc("/voice/listen", m.HandleVoiceListen)
	mux.HandleFunc("/voice/transcript", m.HandleVoiceTranscript)
	mux.HandleFunc("/voice/state", m.HandleVoiceState)
	mux.HandleFunc("/tasks", m.HandleTasks)
	mux.HandleFunc("/tasks/{id}/delete", m.HandleTaskDelete)
	mux.HandleFunc("/tasks/{id}/complete", m.HandleTaskComplete)
	mux.HandleFunc("/notes", m.HandleNotes)

	// Create custom server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := socket.Close(); err != nil {
			logger.Warn("Failed to close backend channel", slog.String("err", err.Error()))
		}
		connectCancel()

		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String("err", err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", slog.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		logger.Error("Server error", slog.String("err", err.Error()))

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		// Create context with timeout for shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("err", err.Error()))
			}
		}
	}
}

func errString(err error) string {
	if err == nil {
		return "connection closed before the namespace was joined"
	}
	return err.Error()
}
