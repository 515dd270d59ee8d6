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

// Package scheduler runs reconciliation sweeps on a fixed interval alongside
// the HTTP server.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"campaign-funding-go/internal/models"

	"go.uber.org/zap"
)

// Sweeper reconciles every campaign with a payment account
type Sweeper interface {
	SweepAll(ctx context.Context) (*models.SweepSummary, error)
}

// ANSI color helpers for console output.
const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
)

type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

func New(sweeper Sweeper, interval time.Duration) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
	}
}

// Start performs a startup sweep and then sweeps every interval until Stop is
// called or ctx is done. A non-positive interval disables scheduling.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		zap.L().Info("Periodic reconciliation disabled (RECONCILE_INTERVAL not set)")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})

	go s.loop(ctx)

	zap.L().Info("Reconciliation scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop gracefully stops the scheduler, waiting for an in-flight sweep
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopChan, doneChan := s.stopChan, s.doneChan
	s.mu.Unlock()

	zap.L().Info("Stopping reconciliation scheduler")
	close(stopChan)
	<-doneChan
	zap.L().Info("Reconciliation scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runSweep(ctx context.Context) {
	fmt.Printf("\n%s[%s] Reconciling campaigns%s\n", colorCyan, time.Now().Format("15:04:05"), colorReset)

	summary, err := s.sweeper.SweepAll(ctx)
	if err != nil {
		fmt.Printf("  %s✗ sweep failed: %s%s\n", colorRed, err, colorReset)
		zap.L().Error("Scheduled reconciliation failed", zap.Error(err))
		return
	}

	color := colorGreen
	if summary.CampaignsFailed > 0 {
		color = colorRed
	}
	fmt.Printf("  %s✓ %d processed, %d skipped, %d failed, %d donations created, %d updated%s\n",
		color, summary.CampaignsProcessed, summary.CampaignsSkipped, summary.CampaignsFailed,
		summary.DonationsCreated, summary.DonationsUpdated, colorReset)
}
