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

package database

const (
	schema = `
	-- One processor sub-account per user
	CREATE TABLE IF NOT EXISTS payment_accounts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		account_id TEXT NOT NULL UNIQUE,
		charges_enabled BOOLEAN NOT NULL DEFAULT 0,
		payouts_enabled BOOLEAN NOT NULL DEFAULT 0,
		details_submitted BOOLEAN NOT NULL DEFAULT 0,
		requirements_due TEXT NOT NULL DEFAULT '[]',
		onboarding_url TEXT NOT NULL DEFAULT '',
		onboarding_expires_at TIMESTAMP NULL,
		dashboard_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Campaign amounts are INTEGER minor units
	CREATE TABLE IF NOT EXISTS campaigns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		short_description TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		target_amount INTEGER NOT NULL CHECK (target_amount > 0),
		current_amount INTEGER NOT NULL DEFAULT 0 CHECK (current_amount >= 0),
		status TEXT NOT NULL DEFAULT 'draft',
		stripe_ready BOOLEAN NOT NULL DEFAULT 0,
		owner_id TEXT NOT NULL,
		moderation_notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_campaigns_owner ON campaigns(owner_id);
	CREATE INDEX IF NOT EXISTS idx_campaigns_status_ready ON campaigns(status, stripe_ready);

	-- payment_reference is the idempotency key for every write path
	CREATE TABLE IF NOT EXISTS donations (
		id TEXT PRIMARY KEY,
		payment_reference TEXT NOT NULL UNIQUE,
		amount INTEGER NOT NULL CHECK (amount > 0),
		campaign_id INTEGER NOT NULL REFERENCES campaigns(id),
		is_anonymous BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_donations_campaign ON donations(campaign_id);

	-- Append-only
	CREATE TABLE IF NOT EXISTS moderation_history (
		id TEXT PRIMARY KEY,
		campaign_id INTEGER NOT NULL REFERENCES campaigns(id),
		moderator_id TEXT NOT NULL,
		action TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_moderation_history_campaign ON moderation_history(campaign_id, created_at);
	`

	// Payment account queries
	accountColumns = `id, user_id, account_id, charges_enabled, payouts_enabled, details_submitted,
		requirements_due, onboarding_url, onboarding_expires_at, dashboard_url, created_at, updated_at`

	queryGetAccountByUser = `
		SELECT ` + accountColumns + `
		FROM payment_accounts
		WHERE user_id = ?`

	queryGetAccountByAccountId = `
		SELECT ` + accountColumns + `
		FROM payment_accounts
		WHERE account_id = ?`

	queryInsertAccount = `
		INSERT INTO payment_accounts (id, user_id, account_id, charges_enabled, payouts_enabled, details_submitted,
			requirements_due, onboarding_url, onboarding_expires_at, dashboard_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`

	queryUpdateAccount = `
		UPDATE payment_accounts
		SET charges_enabled = ?, payouts_enabled = ?, details_submitted = ?, requirements_due = ?,
			onboarding_url = ?, onboarding_expires_at = ?, dashboard_url = ?, updated_at = ?
		WHERE account_id = ?`

	querySetCampaignsStripeReady = `
		UPDATE campaigns
		SET stripe_ready = ?, updated_at = ?
		WHERE owner_id = ? AND stripe_ready <> ?`

	// Campaign queries
	campaignColumns = `id, title, short_description, description, target_amount, current_amount,
		status, stripe_ready, owner_id, moderation_notes, created_at, updated_at`

	queryInsertCampaign = `
		INSERT INTO campaigns (title, short_description, description, target_amount, current_amount,
			status, stripe_ready, owner_id, moderation_notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?)`

	queryGetCampaign = `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE id = ?`

	queryUpdateCampaign = `
		UPDATE campaigns
		SET title = ?, short_description = ?, description = ?, target_amount = ?,
			status = ?, moderation_notes = ?, updated_at = ?
		WHERE id = ? AND status = ?`

	queryListCampaigns = `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE (? = '' OR status = ?) AND (? = '' OR owner_id = ?)
		ORDER BY id`

	queryListReconcilableCampaigns = `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status = 'approved' AND stripe_ready = 1
		ORDER BY id`

	// Moderation history queries
	queryInsertModerationEntry = `
		INSERT INTO moderation_history (id, campaign_id, moderator_id, action, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryListModerationHistory = `
		SELECT id, campaign_id, moderator_id, action, notes, created_at
		FROM moderation_history
		WHERE campaign_id = ?
		ORDER BY created_at, rowid`

	// Donation queries
	donationColumns = `id, payment_reference, amount, campaign_id, is_anonymous, created_at, updated_at`

	queryInsertDonation = `
		INSERT INTO donations (id, payment_reference, amount, campaign_id, is_anonymous, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(payment_reference) DO NOTHING`

	queryCorrectDonationAmount = `
		UPDATE donations
		SET amount = ?, updated_at = ?
		WHERE payment_reference = ? AND amount = ?`

	queryGetDonationByReference = `
		SELECT ` + donationColumns + `
		FROM donations
		WHERE payment_reference = ?`

	queryListDonations = `
		SELECT ` + donationColumns + `
		FROM donations
		WHERE campaign_id = ?
		ORDER BY created_at, rowid`

	// Funding queries
	queryRecalculateCampaignAmount = `
		UPDATE campaigns
		SET current_amount = (SELECT COALESCE(SUM(amount), 0) FROM donations WHERE campaign_id = campaigns.id),
			updated_at = ?
		WHERE id = ?
		  AND current_amount <> (SELECT COALESCE(SUM(amount), 0) FROM donations WHERE campaign_id = campaigns.id)`

	queryGetCampaignAmount = `
		SELECT current_amount FROM campaigns WHERE id = ?`

	queryIncrementCampaignAmount = `
		UPDATE campaigns
		SET current_amount = current_amount + ?, updated_at = ?
		WHERE id = ?`
)
