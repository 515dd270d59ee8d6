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

package models

import "time"

// Payment status values reported for checkout sessions
const (
	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"
)

// Metadata key carrying the local campaign id on sessions and payment intents
const MetadataCampaignId = "campaign_id"

// CheckoutSession is the subset of a processor checkout session we reconcile from
type CheckoutSession struct {
	Id              string
	PaymentIntentId string
	PaymentStatus   string
	AmountTotal     int64
	Currency        string
	Url             string
	Metadata        map[string]string
}

// PaymentIntent is the subset of a processor payment intent used by sweeps
type PaymentIntent struct {
	Id             string
	Status         string
	Amount         int64
	AmountReceived int64
	Metadata       map[string]string
}

// OnboardingLink is a hosted onboarding URL with its expiry
type OnboardingLink struct {
	Url       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CheckoutParams describes a hosted checkout session to create
type CheckoutParams struct {
	AccountId   string
	CampaignId  int64
	ProductName string
	Currency    string
	AmountMinor int64
	SuccessUrl  string
	CancelUrl   string
}

// ProcessorEvent is a verified webhook event. Session, AccountStatus and
// CapabilityAccountId are decoded from data.object for the types that carry them.
type ProcessorEvent struct {
	Id      string
	Type    string
	Account string

	Session             *CheckoutSession
	AccountStatus       *AccountStatus
	CapabilityAccountId string
}
