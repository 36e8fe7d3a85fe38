// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// a2a-gateway bridges an inference backend to agent-to-agent protocol clients
// and to plain SSE streaming clients.
//
// Configuration is read from the file given with --config, then overridden by
// A2A_GATEWAY_* environment variables. A .env file in the working directory is
// loaded first when present.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/go-a2a/a2a-gateway/internal/config"
	"github.com/go-a2a/a2a-gateway/internal/metrics"
	"github.com/go-a2a/a2a-gateway/server"
	"github.com/go-a2a/a2a-gateway/server/task"
	"github.com/go-a2a/a2a-gateway/turn/openai"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		envFile    string
		addr       string
	)
	flags := pflag.NewFlagSet("a2a-gateway", pflag.ContinueOnError)
	flags.StringVarP(&configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "path to the YAML configuration file")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := task.Open(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open conversation store: %w", err)
	}
	defer store.Close()
	if err := task.WaitReady(ctx, store, cfg.Server.StartupTimeout); err != nil {
		return err
	}

	backend, err := openai.New(openai.Config{
		APIKey:      cfg.Backend.APIKey,
		BaseURL:     cfg.Backend.BaseURL,
		Model:       cfg.Backend.Model,
		Models:      cfg.Backend.Models,
		ForwardAuth: cfg.Backend.ForwardAuth,
		MaxHistory:  cfg.Backend.MaxHistory,
		MaxRetries:  cfg.Backend.MaxRetries,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		AgentCard:      &cfg.AgentCard,
		Store:          store,
		Resolver:       backend,
		SystemPrompt:   cfg.Server.SystemPrompt,
		QueueSize:      cfg.Server.QueueSize,
		ReceiveTimeout: cfg.Server.ReceiveTimeout,
		Keepalive:      cfg.Server.Keepalive,
	},
		server.WithLogger(logger),
		server.WithMetrics(metrics.New()),
	)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", slog.String("addr", cfg.Server.Addr))
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
