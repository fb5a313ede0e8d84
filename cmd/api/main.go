/* Copyright (c) 2026 Dzeax <https://dzeax.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dzeax/mi-app-monet-sub000/internal/adapters/jira"
	"github.com/dzeax/mi-app-monet-sub000/internal/adapters/telegram"
	"github.com/dzeax/mi-app-monet-sub000/internal/config"
	httpapi "github.com/dzeax/mi-app-monet-sub000/internal/http"
	"github.com/dzeax/mi-app-monet-sub000/internal/jobs"
	"github.com/dzeax/mi-app-monet-sub000/internal/logger"
	"github.com/dzeax/mi-app-monet-sub000/internal/repo"
	"github.com/dzeax/mi-app-monet-sub000/internal/services"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db := repo.MustOpen(ctx, cfg, log)
	defer db.Close()

	// Adapters
	jc := jira.New(cfg, log)
	tg := telegram.New(cfg, log)

	// Services
	repository := repo.New(db, log)
	svc := services.New(cfg, log, repository, jc, tg)

	// HTTP server (Gin)
	router := httpapi.NewRouter(cfg, log, svc)

	// Cron + sync poller
	cr := jobs.NewCron(cfg, log, svc, repository)
	cr.Start()
	defer cr.Stop()
	go cr.RunPoller(ctx)

	// graceful shutdown
	errCh := make(chan error, 1)
	go func() { errCh <- router.Run(cfg.HTTPAddr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("shutting down...")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	time.Sleep(500 * time.Millisecond)
}
