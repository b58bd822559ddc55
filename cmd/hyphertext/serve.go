package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codefionn/hyphertext/internal/consts"
	"github.com/codefionn/hyphertext/internal/dispatch"
	"github.com/codefionn/hyphertext/internal/events"
	"github.com/codefionn/hyphertext/internal/logger"
	"github.com/codefionn/hyphertext/internal/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP agent service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	v, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Global().Close()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	watchLogLevel(v)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := web.NewHub()
	publisher := events.Multi{hub, events.Log{Logger: logger.Global().WithPrefix("events")}}
	a, err := newApp(ctx, cfg, publisher)
	if err != nil {
		cfg.Credentials.Destroy()
		return err
	}
	defer a.Close()

	dispatcher := dispatch.New(a.orchestrator,
		dispatch.WithRunTimeout(cfg.Agent.RunTimeout),
		dispatch.WithLogger(logger.Global().WithPrefix("dispatch")),
	)
	server := web.NewServer(cfg.Server, web.Deps{
		Store:      a.store,
		Models:     a.router,
		Dispatcher: dispatcher,
		Blobs:      a.blobs,
		FilesDir:   a.blobs.Dir(),
		Hub:        hub,
		Logger:     logger.Global().WithPrefix("web"),
	})

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Start() }()

	select {
	case err = <-serveErr:
	case <-ctx.Done():
		logger.Info("shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), consts.ShutdownTimeout)
	defer cancel()
	shutdownErr := server.Shutdown(shutdownCtx)
	if derr := dispatcher.Shutdown(shutdownCtx); derr != nil {
		logger.Warn("abandoned running requests: %v", derr)
	}
	hub.Wait()
	return errors.Join(err, shutdownErr)
}
