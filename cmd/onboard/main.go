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
	"fmt"
	"regexp"
	"strings"

	"campaign-funding-go/internal/apperr"
	"campaign-funding-go/internal/common"
	"campaign-funding-go/internal/config"
	"campaign-funding-go/internal/models"

	"go.uber.org/zap"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

func validateUserId(userId string) error {
	if strings.TrimSpace(userId) == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	return nil
}

func printAccount(account *models.PaymentAccount) {
	fmt.Printf("User:              %s\n", account.UserId)
	fmt.Printf("Account:           %s\n", account.AccountId)
	fmt.Printf("Charges enabled:   %t\n", account.ChargesEnabled)
	fmt.Printf("Payouts enabled:   %t\n", account.PayoutsEnabled)
	fmt.Printf("Details submitted: %t\n", account.DetailsSubmitted)
	if len(account.RequirementsDue) > 0 {
		fmt.Printf("Requirements due:  %s\n", strings.Join(account.RequirementsDue, ", "))
	}
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "Campaign owner's user id (required)")
	emailFlag := flag.String("email", "", "Campaign owner's email address (required)")
	syncFlag := flag.Bool("sync", false, "Refresh account status from the processor before printing")
	flag.Parse()

	if err := validateUserId(*userFlag); err != nil {
		zap.L().Fatal("Invalid user id", zap.Error(err))
	}
	if err := validateEmail(*emailFlag); err != nil {
		zap.L().Fatal("Invalid email", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}
	if !cfg.Processor.Configured() {
		zap.L().Fatal("STRIPE_SECRET_KEY is required to create payment accounts")
	}

	zap.L().Info("Initializing services")
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	account, err := services.Directory.EnsureAccount(ctx, *userFlag, *emailFlag)
	if err != nil {
		zap.L().Fatal("Failed to ensure payment account", zap.String("user_id", *userFlag), zap.Error(err))
	}

	if *syncFlag {
		synced, err := services.Directory.SyncAccount(ctx, account)
		if err != nil {
			zap.L().Fatal("Failed to sync payment account", zap.String("account_id", account.AccountId), zap.Error(err))
		}
		account = synced
	}

	fmt.Println()
	common.PrintHeader("PAYMENT ACCOUNT", common.DefaultWidth)
	printAccount(account)
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	link, err := services.Directory.RefreshOnboardingLink(ctx, account)
	if errors.Is(err, apperr.ErrAlreadyReady) {
		fmt.Println("Onboarding complete, the account can receive donations.")
		return
	}
	if err != nil {
		zap.L().Fatal("Failed to create onboarding link", zap.String("account_id", account.AccountId), zap.Error(err))
	}

	fmt.Printf("Onboarding link (expires %s):\n%s\n\n", link.ExpiresAt.Format("2006-01-02 15:04:05"), link.Url)
	zap.L().Info("Onboarding link issued",
		zap.String("user_id", account.UserId),
		zap.String("account_id", account.AccountId))
}
