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
	"flag"
	"fmt"
	"strings"

	"campaign-funding-go/internal/common"
	"campaign-funding-go/internal/config"
	"campaign-funding-go/internal/events"
	"campaign-funding-go/internal/formance"
	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/processor"

	"go.uber.org/zap"
)

type setupStep struct {
	name     string
	optional bool
	run      func(ctx context.Context, cfg *models.Config) (string, error)
}

func setupDatabase(ctx context.Context, cfg *models.Config) (string, error) {
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer dbService.Close()
	return fmt.Sprintf("schema ready at %s", cfg.Database.Path), nil
}

func checkCheckoutConfig(_ context.Context, cfg *models.Config) (string, error) {
	checkout, err := common.LoadCheckoutConfig(cfg.Processor.CheckoutFile)
	if err != nil {
		return "", err
	}
	if *checkout == (models.CheckoutConfig{}) {
		return "no checkout file, using defaults", nil
	}
	return fmt.Sprintf("currency=%s min=%s max=%s", checkout.Currency, checkout.MinAmount, checkout.MaxAmount), nil
}

func checkProcessor(_ context.Context, cfg *models.Config) (string, error) {
	if !cfg.Processor.Configured() {
		return "", fmt.Errorf("STRIPE_SECRET_KEY not set")
	}
	if _, err := processor.NewService(cfg.Processor); err != nil {
		return "", err
	}
	if cfg.Processor.WebhookSecret == "" {
		return "configured, STRIPE_WEBHOOK_SECRET missing (signatures will not be verified)", nil
	}
	return "configured", nil
}

func setupJournal(ctx context.Context, cfg *models.Config) (string, error) {
	if !cfg.Formance.Configured() {
		return "", fmt.Errorf("FORMANCE_STACK_URL, FORMANCE_CLIENT_ID and FORMANCE_CLIENT_SECRET not set")
	}
	journal, err := formance.NewService(ctx, cfg.Formance)
	if err != nil {
		return "", err
	}
	journal.Close()
	return fmt.Sprintf("ledger %s ready", cfg.Formance.LedgerName), nil
}

func checkEvents(_ context.Context, cfg *models.Config) (string, error) {
	if strings.TrimSpace(cfg.Events.RabbitMQUrl) == "" {
		return "", fmt.Errorf("RABBITMQ_URL not set")
	}
	publisher, err := events.NewRabbitPublisher(cfg.Events.RabbitMQUrl, cfg.Events.Exchange)
	if err != nil {
		return "", err
	}
	publisher.Close()
	return fmt.Sprintf("exchange %s declared", cfg.Events.Exchange), nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	strictFlag := flag.Bool("strict", false, "Fail when an optional integration is not available")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	steps := []setupStep{
		{name: "Database", run: setupDatabase},
		{name: "Checkout", run: checkCheckoutConfig},
		{name: "Processor", optional: true, run: checkProcessor},
		{name: "Journal", optional: true, run: setupJournal},
		{name: "Events", optional: true, run: checkEvents},
	}

	common.PrintHeader("SETUP", common.DefaultWidth)

	var failed []string
	for i, step := range steps {
		prefix := common.BoxPrefix(i == len(steps)-1)
		detail, err := step.run(ctx, cfg)
		switch {
		case err == nil:
			fmt.Printf("%s✓ %-10s %s\n", prefix, step.name, detail)
		case step.optional && !*strictFlag:
			fmt.Printf("%s~ %-10s skipped: %s\n", prefix, step.name, err)
		default:
			fmt.Printf("%s✗ %-10s %s\n", prefix, step.name, err)
			zap.L().Error("Setup step failed", zap.String("step", step.name), zap.Error(err))
			failed = append(failed, step.name)
		}
	}

	if len(failed) > 0 {
		common.PrintFooter(fmt.Sprintf("Setup failed: %s", strings.Join(failed, ", ")), common.DefaultWidth)
		zap.L().Fatal("Setup incomplete", zap.Strings("failed_steps", failed))
	}
	common.PrintFooter("Setup complete", common.DefaultWidth)
}
