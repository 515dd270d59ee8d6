/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campaign-funding-go/internal/api"
	"campaign-funding-go/internal/common"
	"campaign-funding-go/internal/config"
	"campaign-funding-go/internal/scheduler"

	"go.uber.org/zap"
)

func main() {
	noScheduler := flag.Bool("no-scheduler", false, "Disable periodic reconciliation even when RECONCILE_INTERVAL is set")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting campaign funding server")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if cfg.Server.JWTSecret == "" {
		zap.L().Warn("AUTH_JWT_SECRET not set, authenticated routes will reject every request")
	}

	routerCfg := api.RouterConfig{
		JWTSecret:      cfg.Server.JWTSecret,
		RequestTimeout: cfg.Server.RequestTimeout,
		Limiter:        api.NewRedisRateLimiter(services.Redis, cfg.Redis.RateLimitPrefix, cfg.Redis.ConfirmLimitPerMinute, time.Minute),
	}

	handlers := api.NewHandlers(services.Engine, services.Machine, services.Directory, api.NewHealthService(services.DbService))
	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.NewRouter(handlers, routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	interval := cfg.Reconcile.Interval
	if *noScheduler {
		interval = 0
	}
	sweeps := scheduler.New(services.Engine, interval)
	if err := sweeps.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start reconciliation scheduler", zap.Error(err))
	}

	go func() {
		zap.L().Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		if err := server.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("HTTP server shutdown error", zap.Error(err))
		}
		sweeps.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Server stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
}
