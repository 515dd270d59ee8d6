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

package common

import (
	"context"
	"log"
	"strings"
	"time"

	"campaign-funding-go/internal/accounts"
	"campaign-funding-go/internal/database"
	"campaign-funding-go/internal/events"
	"campaign-funding-go/internal/formance"
	"campaign-funding-go/internal/funding"
	"campaign-funding-go/internal/ledger"
	"campaign-funding-go/internal/lifecycle"
	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/processor"
	"campaign-funding-go/internal/reconcile"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

// PaymentProcessor is what both the reconciliation engine and the account
// directory need from the processor.
type PaymentProcessor interface {
	reconcile.Processor
	accounts.Processor
}

type Services struct {
	DbService  *database.Service
	Processor  PaymentProcessor
	Publisher  events.Publisher
	Journal    *formance.Service
	Redis      *redis.Client
	Directory  *accounts.Directory
	Ledger     *ledger.Ledger
	Aggregator *funding.Aggregator
	Machine    *lifecycle.Machine
	Engine     *reconcile.Engine
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires storage, the processor, the optional journal and
// event bus, and the domain services on top of them. Optional integrations
// that are unconfigured or unreachable degrade to no-ops.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	services := &Services{DbService: dbService}

	services.Processor = initializeProcessor(cfg.Processor)
	services.Publisher = events.NewPublisher(cfg.Events.RabbitMQUrl, cfg.Events.Exchange)
	services.Redis = initializeRedis(ctx, cfg.Redis)

	var journal ledger.Journal = ledger.NoopJournal{}
	if cfg.Formance.Configured() {
		journalService, err := formance.NewService(ctx, cfg.Formance)
		if err != nil {
			zap.L().Warn("Formance journal unavailable, donations will not be mirrored", zap.Error(err))
		} else {
			services.Journal = journalService
			journal = journalService
		}
	} else {
		zap.L().Info("Formance not configured, donations will not be mirrored")
	}

	checkout, err := LoadCheckoutConfig(cfg.Processor.CheckoutFile)
	if err != nil {
		services.Close()
		return nil, err
	}

	services.Directory = accounts.NewDirectory(accounts.DirectoryConfig{
		Store:      dbService,
		Processor:  services.Processor,
		Publisher:  services.Publisher,
		RefreshUrl: cfg.Processor.ConnectRefreshUrl,
		ReturnUrl:  cfg.Processor.ConnectReturnUrl,
	})
	services.Ledger = ledger.New(dbService, journal)
	services.Aggregator = funding.NewAggregator(dbService)
	services.Machine = lifecycle.NewMachine(dbService, services.Directory, services.Publisher)

	services.Engine, err = reconcile.NewEngine(reconcile.EngineConfig{
		Campaigns:        dbService,
		Accounts:         services.Directory,
		Ledger:           services.Ledger,
		Aggregator:       services.Aggregator,
		Processor:        services.Processor,
		Publisher:        services.Publisher,
		SweepConcurrency: cfg.Reconcile.SweepConcurrency,
		Checkout:         *checkout,
		FrontendBaseUrl:  cfg.Processor.FrontendBaseUrl,
	})
	if err != nil {
		services.Close()
		return nil, err
	}

	return services, nil
}

// InitializeDatabaseOnly initializes just the database service without the processor
// Useful for read-only operations like listing campaigns
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.Redis != nil {
		if err := cs.Redis.Close(); err != nil {
			zap.L().Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if cs.Publisher != nil {
		cs.Publisher.Close()
	}
	if cs.Journal != nil {
		cs.Journal.Close()
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func initializeProcessor(cfg models.ProcessorConfig) PaymentProcessor {
	if !cfg.Configured() {
		zap.L().Warn("STRIPE_SECRET_KEY not set, payment processor disabled")
		return processor.Disabled{}
	}
	service, err := processor.NewService(cfg)
	if err != nil {
		zap.L().Error("Failed to initialize payment processor, continuing disabled", zap.Error(err))
		return processor.Disabled{}
	}
	if cfg.WebhookSecret == "" {
		zap.L().Warn("STRIPE_WEBHOOK_SECRET not set, webhook signatures will not be verified")
	}
	return service
}

// initializeRedis returns nil when rate limiting is unconfigured or Redis is unreachable
func initializeRedis(ctx context.Context, cfg models.RedisConfig) *redis.Client {
	if cfg.ConfirmLimitPerMinute <= 0 {
		return nil
	}
	if strings.TrimSpace(cfg.Url) == "" {
		zap.L().Info("REDIS_URL not set, rate limiting disabled")
		return nil
	}

	options, err := redis.ParseURL(cfg.Url)
	if err != nil {
		zap.L().Warn("Redis url parse failed, rate limiting disabled", zap.Error(err))
		return nil
	}

	client := redis.NewClient(options)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		zap.L().Warn("Redis ping failed, rate limiting disabled", zap.Error(err))
		_ = client.Close()
		return nil
	}

	zap.L().Info("Redis connected, rate limiting enabled",
		zap.Int("limit_per_minute", cfg.ConfirmLimitPerMinute))
	return client
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
