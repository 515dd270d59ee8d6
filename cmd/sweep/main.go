package main

import (
	"context"
	"flag"
	"os"
	"time"

	"campaign-funding-go/internal/common"
	"campaign-funding-go/internal/config"
	"campaign-funding-go/internal/models"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	campaignFlag := flag.Int64("campaign", 0, "Reconcile a single campaign by id (default: every campaign with a payment account)")
	timeoutFlag := flag.Duration("timeout", 10*time.Minute, "Abort the sweep after this long")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}
	if !cfg.Processor.Configured() {
		zap.L().Fatal("STRIPE_SECRET_KEY is required to reconcile against the payment processor")
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	ctx, cancel := context.WithTimeout(ctx, *timeoutFlag)
	defer cancel()

	summary := &models.SweepSummary{StartedAt: time.Now().UTC()}
	if *campaignFlag > 0 {
		zap.L().Info("Reconciling campaign", zap.Int64("campaign_id", *campaignFlag))
		result, err := services.Engine.SweepCampaign(ctx, *campaignFlag)
		if err != nil {
			zap.L().Fatal("Failed to reconcile campaign", zap.Int64("campaign_id", *campaignFlag), zap.Error(err))
		}
		summary.Add(*result)
		summary.FinishedAt = time.Now().UTC()
	} else {
		zap.L().Info("Reconciling all campaigns", zap.Int("concurrency", cfg.Reconcile.SweepConcurrency))
		summary, err = services.Engine.SweepAll(ctx)
		if err != nil {
			zap.L().Fatal("Failed to reconcile campaigns", zap.Error(err))
		}
	}

	common.PrintSweepSummary(summary)

	if summary.CampaignsFailed > 0 {
		zap.L().Warn("Sweep completed with failures", zap.Int("failed", summary.CampaignsFailed))
		loggerCleanup()
		os.Exit(1)
	}
}
