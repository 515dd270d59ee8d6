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

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig carries the cross-cutting settings of the HTTP surface
type RouterConfig struct {
	JWTSecret      string
	RequestTimeout time.Duration
	// Limiter may be nil, in which case no route is rate limited.
	Limiter RateLimiter
}

// NewRouter creates and configures the chi router with all routes
func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Get("/health", h.Health)

	auth := AuthMiddleware([]byte(cfg.JWTSecret))

	r.Route("/api", func(r chi.Router) {
		r.Post("/stripe/webhook", h.StripeWebhook)

		r.Route("/donations", func(r chi.Router) {
			r.With(RateLimit(cfg.Limiter, "confirm")).Post("/confirm", h.ConfirmDonation)
			r.With(RateLimit(cfg.Limiter, "checkout")).Post("/checkout", h.CreateCheckout)
		})

		r.Get("/campaigns/{id}/progress", h.CampaignProgress)
		r.Get("/campaigns/{id}/donations", h.CampaignDonations)

		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Post("/campaigns", h.CreateCampaign)
			r.Get("/campaigns/{id}", h.GetCampaign)
			r.Put("/campaigns/{id}", h.EditCampaign)
			r.Get("/campaigns/{id}/history", h.ModerationHistory)
			r.Post("/campaigns/{id}/submit", h.campaignAction(h.campaigns.Submit))
			r.Post("/campaigns/{id}/suspend", h.campaignAction(h.campaigns.Suspend))
			r.Post("/campaigns/{id}/cancel", h.campaignAction(h.campaigns.Cancel))

			r.Post("/moderation/campaigns/{id}/approve", h.moderationAction(h.campaigns.Approve))
			r.Post("/moderation/campaigns/{id}/reject", h.moderationAction(h.campaigns.Reject))
			r.Post("/moderation/campaigns/{id}/resume", h.moderationAction(h.campaigns.Resume))

			r.Get("/payments/account", h.GetAccount)
			r.Post("/payments/account/onboarding", h.StartOnboarding)

			r.With(RequireModerator).Post("/admin/reconcile/campaigns", h.SweepAll)
			r.With(RequireModerator).Post("/admin/reconcile/campaigns/{id}", h.SweepCampaign)
		})
	})

	return r
}
