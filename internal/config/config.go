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

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"campaign-funding-go/internal/models"

	"github.com/spf13/viper"
)

var defaults = map[string]interface{}{
	"DATABASE_PATH":                 "campaigns.db",
	"DB_MAX_OPEN_CONNS":             25,
	"DB_MAX_IDLE_CONNS":             5,
	"DB_CONN_MAX_LIFETIME":          "5m",
	"DB_CONN_MAX_IDLE_TIME":         "30s",
	"DB_PING_TIMEOUT":               "5s",
	"DB_BUSY_TIMEOUT":               "5s",
	"SERVER_PORT":                   "8080",
	"SERVER_REQUEST_TIMEOUT":        "30s",
	"STRIPE_HTTP_TIMEOUT":           "30s",
	"CHECKOUT_FILE":                 "checkout.yaml",
	"FRONTEND_BASE_URL":             "http://localhost:3000",
	"RECONCILE_SWEEP_CONCURRENCY":   4,
	"RECONCILE_INTERVAL":            "0s",
	"EVENTS_EXCHANGE":               "donation_events",
	"REDIS_RATE_LIMIT_PREFIX":       "campaign_funding:rate_limit",
	"CONFIRM_RATE_LIMIT_PER_MINUTE": 20,
	"FORMANCE_LEDGER":               "campaign-donations",
}

var envKeys = []string{
	"AUTH_JWT_SECRET",
	"STRIPE_SECRET_KEY",
	"STRIPE_WEBHOOK_SECRET",
	"STRIPE_CONNECT_REFRESH_URL",
	"STRIPE_CONNECT_RETURN_URL",
	"RABBITMQ_URL",
	"REDIS_URL",
	"FORMANCE_STACK_URL",
	"FORMANCE_CLIENT_ID",
	"FORMANCE_CLIENT_SECRET",
}

// Load reads configuration from the environment. A .env file, if present, has
// already been loaded into the environment by the common package.
func Load() (*models.Config, error) {
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
	viper.AutomaticEnv()
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	durations := map[string]*time.Duration{}
	var (
		connMaxLifetime, connMaxIdleTime, pingTimeout, busyTimeout time.Duration
		requestTimeout, httpTimeout, reconcileInterval             time.Duration
	)
	durations["DB_CONN_MAX_LIFETIME"] = &connMaxLifetime
	durations["DB_CONN_MAX_IDLE_TIME"] = &connMaxIdleTime
	durations["DB_PING_TIMEOUT"] = &pingTimeout
	durations["DB_BUSY_TIMEOUT"] = &busyTimeout
	durations["SERVER_REQUEST_TIMEOUT"] = &requestTimeout
	durations["STRIPE_HTTP_TIMEOUT"] = &httpTimeout
	durations["RECONCILE_INTERVAL"] = &reconcileInterval

	for key, dst := range durations {
		d, err := getDuration(key)
		if err != nil {
			return nil, err
		}
		*dst = d
	}

	ints := map[string]*int{}
	var maxOpenConns, maxIdleConns, sweepConcurrency, confirmLimit int
	ints["DB_MAX_OPEN_CONNS"] = &maxOpenConns
	ints["DB_MAX_IDLE_CONNS"] = &maxIdleConns
	ints["RECONCILE_SWEEP_CONCURRENCY"] = &sweepConcurrency
	ints["CONFIRM_RATE_LIMIT_PER_MINUTE"] = &confirmLimit

	for key, dst := range ints {
		n, err := getInt(key)
		if err != nil {
			return nil, err
		}
		*dst = n
	}

	if sweepConcurrency < 1 {
		return nil, fmt.Errorf("RECONCILE_SWEEP_CONCURRENCY must be at least 1, got %d", sweepConcurrency)
	}

	cfg := &models.Config{
		Database: models.DatabaseConfig{
			Path:            getString("DATABASE_PATH"),
			MaxOpenConns:    maxOpenConns,
			MaxIdleConns:    maxIdleConns,
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			BusyTimeout:     busyTimeout,
		},
		Server: models.ServerConfig{
			Port:           getString("SERVER_PORT"),
			RequestTimeout: requestTimeout,
			JWTSecret:      getString("AUTH_JWT_SECRET"),
		},
		Processor: models.ProcessorConfig{
			SecretKey:         getString("STRIPE_SECRET_KEY"),
			WebhookSecret:     getString("STRIPE_WEBHOOK_SECRET"),
			ConnectRefreshUrl: getString("STRIPE_CONNECT_REFRESH_URL"),
			ConnectReturnUrl:  getString("STRIPE_CONNECT_RETURN_URL"),
			FrontendBaseUrl:   strings.TrimSuffix(getString("FRONTEND_BASE_URL"), "/"),
			HTTPTimeout:       httpTimeout,
			CheckoutFile:      getString("CHECKOUT_FILE"),
		},
		Reconcile: models.ReconcileConfig{
			SweepConcurrency: sweepConcurrency,
			Interval:         reconcileInterval,
		},
		Events: models.EventsConfig{
			RabbitMQUrl: getString("RABBITMQ_URL"),
			Exchange:    getString("EVENTS_EXCHANGE"),
		},
		Redis: models.RedisConfig{
			Url:                   getString("REDIS_URL"),
			RateLimitPrefix:       getString("REDIS_RATE_LIMIT_PREFIX"),
			ConfirmLimitPerMinute: confirmLimit,
		},
		Formance: models.FormanceConfig{
			StackURL:     getString("FORMANCE_STACK_URL"),
			ClientID:     getString("FORMANCE_CLIENT_ID"),
			ClientSecret: getString("FORMANCE_CLIENT_SECRET"),
			LedgerName:   getString("FORMANCE_LEDGER"),
		},
	}

	if cfg.Processor.Configured() {
		if cfg.Processor.ConnectRefreshUrl == "" {
			cfg.Processor.ConnectRefreshUrl = cfg.Processor.FrontendBaseUrl + "/payments/onboarding/refresh"
		}
		if cfg.Processor.ConnectReturnUrl == "" {
			cfg.Processor.ConnectReturnUrl = cfg.Processor.FrontendBaseUrl + "/payments/onboarding/complete"
		}
	}

	return cfg, nil
}

func getString(key string) string {
	return strings.TrimSpace(viper.GetString(key))
}

func getDuration(key string) (time.Duration, error) {
	value := getString(key)
	if value == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("invalid duration for %s: %q must not be negative", key, value)
	}
	return duration, nil
}

func getInt(key string) (int, error) {
	value := getString(key)
	if value == "" {
		return 0, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q (%w)", key, value, err)
	}
	return intValue, nil
}
