package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/MegaGrindStone/argus-console/internal/config"
	"github.com/MegaGrindStone/argus-console/internal/console"
	"github.com/MegaGrindStone/argus-console/internal/services"
	"github.com/MegaGrindStone/argus-console/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	cfgPath := flag.String("config", "", "path to config.yaml (default: $ARGUS_CONFIG or the user config dir)")
	logPath := flag.String("log", "", "write logs to this file; the terminal is taken by the UI")
	flag.Parse()

	if err := run(*cfgPath, *logPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfgPath, logPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	var logOut io.Writer = io.Discard
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("error opening log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := cfg.Logger(logOut)

	renderer, err := tui.NewRenderer(cfg.GlamourStyle, 80)
	if err != nil {
		return err
	}

	socket, err := services.NewSocketIO(cfg.BackendURL, logger)
	if err != nil {
		return err
	}
	backend := services.NewBackend(cfg.BackendURL, logger)

	view := tui.NewView()
	c := console.New(socket, view, renderer, backend, cfg.ConsoleOptions(), logger)
	c.Bind()

	p := tea.NewProgram(tui.NewModel(c, cfg.Personas, renderer), tea.WithAltScreen())

	done := make(chan struct{})
	go view.Run(p.Send, done)

	connectCtx, connectCancel := context.WithCancel(context.Background())
	defer connectCancel()

	view.SetStatus("Connecting to " + cfg.BackendURL + "...")
	ready := make(chan struct{})
	go func() {
		// Reconnecting is left to a restart.
		if err := socket.Connect(connectCtx, ready); err != nil {
			logger.Error("Backend channel closed", slog.String("err", err.Error()))
			view.SetStatus("Connection error: " + err.Error())
		}
	}()

	_, runErr := p.Run()

	close(done)
	if err := socket.Close(); err != nil {
		logger.Warn("Failed to close backend channel", slog.String("err", err.Error()))
	}
	connectCancel()

	reported := make(chan struct{})
	go func() {
		c.Wait()
		close(reported)
	}()
	select {
	case <-reported:
	case <-time.After(5 * time.Second):
		logger.Warn("Feedback reports still pending at exit")
	}

	return runErr
}
