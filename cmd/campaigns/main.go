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

	"campaign-funding-go/internal/common"
	"campaign-funding-go/internal/config"
	"campaign-funding-go/internal/database"
	"campaign-funding-go/internal/formance"
	"campaign-funding-go/internal/funding"
	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/money"
	"campaign-funding-go/internal/store"

	"go.uber.org/zap"
)

type reportStats struct {
	totalCampaigns int
	withDonations  int
	totalDonations int
	totalRaised    money.Money
	drifted        int
}

func printCampaignHeader(c models.Campaign) {
	fmt.Printf("\n┌─ Campaign %d: %s\n", c.Id, c.Title)
	fmt.Printf("│  Owner: %s | Status: %s | Ready: %t\n", c.OwnerId, c.Status, c.StripeReady)
	fmt.Printf("│  Progress: %s\n", common.FormatProgress(funding.Progress(&c)))
	common.PrintBoxSeparator(78)
}

func printDonation(d models.Donation, isLast bool) {
	fmt.Printf("%s %-40s: %12s (updated: %s)\n",
		common.BoxPrefix(isLast),
		d.PaymentReference,
		d.Amount.String(),
		d.UpdatedAt.Format("2006-01-02 15:04:05"))
}

// processCampaign prints a campaign and returns its donation count and whether
// its stored total disagrees with the sum of its donations or the journal.
func processCampaign(ctx context.Context, c models.Campaign, dbService *database.Service, journal *formance.Service, logger *zap.Logger) (int, money.Money, bool, error) {
	donations, err := dbService.ListDonations(ctx, c.Id)
	if err != nil {
		return 0, money.Zero, false, fmt.Errorf("failed to list donations: %w", err)
	}

	printCampaignHeader(c)

	sum := money.Zero
	for i, d := range donations {
		printDonation(d, i == len(donations)-1)
		sum = sum.Add(d.Amount)
	}

	drifted := false
	if !sum.Equal(c.CurrentAmount) {
		drifted = true
		fmt.Printf("   ! stored total %s differs from donations %s\n", c.CurrentAmount, sum)
	}

	if journal != nil {
		journaled, err := journal.CampaignBalance(ctx, c.Id)
		if err != nil {
			logger.Warn("Failed to read journal balance", zap.Int64("campaign_id", c.Id), zap.Error(err))
		} else if !journaled.Equal(sum) {
			drifted = true
			fmt.Printf("   ! journal balance %s differs from donations %s\n", journaled, sum)
		}
	}

	return len(donations), sum, drifted, nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	statusFlag := flag.String("status", "", "Filter by campaign status (draft, pending, approved, rejected, suspended, cancelled)")
	ownerFlag := flag.String("owner", "", "Filter by owner user id")
	auditFlag := flag.Bool("audit", false, "Compare totals against the Formance journal when it is configured")
	flag.Parse()

	status := models.CampaignStatus(*statusFlag)
	if status != "" && !status.Valid() {
		logger.Fatal("Invalid status filter", zap.String("status", *statusFlag))
	}

	logger.Info("Starting campaign report")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// No processor needed for a read-only report
	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	var journal *formance.Service
	if *auditFlag {
		if !cfg.Formance.Configured() {
			logger.Fatal("-audit requires FORMANCE_STACK_URL, FORMANCE_CLIENT_ID and FORMANCE_CLIENT_SECRET")
		}
		journal, err = formance.NewService(ctx, cfg.Formance)
		if err != nil {
			logger.Fatal("Failed to connect to Formance", zap.Error(err))
		}
		defer journal.Close()
	}

	campaigns, err := dbService.ListCampaigns(ctx, store.ListCampaignsParams{Status: status, OwnerId: *ownerFlag})
	if err != nil {
		logger.Fatal("Failed to list campaigns", zap.Error(err))
	}

	common.PrintHeader("CAMPAIGN FUNDING REPORT", common.DefaultWidth)

	stats := reportStats{totalRaised: money.Zero}
	for _, c := range campaigns {
		stats.totalCampaigns++

		count, sum, drifted, err := processCampaign(ctx, c, dbService, journal, logger)
		if err != nil {
			logger.Error("Failed to process campaign",
				zap.Int64("campaign_id", c.Id),
				zap.Error(err))
			continue
		}
		if count > 0 {
			stats.withDonations++
			stats.totalDonations += count
			stats.totalRaised = stats.totalRaised.Add(sum)
		}
		if drifted {
			stats.drifted++
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d campaigns, %d with donations, %d donations totalling %s, %d out of sync",
		stats.totalCampaigns, stats.withDonations, stats.totalDonations, stats.totalRaised, stats.drifted)
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Campaign report completed",
		zap.Int("campaigns", stats.totalCampaigns),
		zap.Int("donations", stats.totalDonations),
		zap.Int("out_of_sync", stats.drifted))
}
