// Package events publishes domain events to a RabbitMQ topic exchange so other
// services can follow donations, funding totals and lifecycle changes.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Routing keys
const (
	DonationRecorded        = "donation.recorded"
	FundingRecalculated     = "campaign.funding.recalculated"
	AccountReadinessChanged = "account.readiness.changed"
	CampaignStatusChanged   = "campaign.status.changed"
	DefaultExchange         = "donation_events"
	defaultDialTimeout      = 10 * time.Second
)

// Publisher is implemented by types that can publish domain events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
	Close()
}

// DonationRecordedEvent is published for every created or corrected donation.
type DonationRecordedEvent struct {
	CampaignId       int64     `json:"campaign_id"`
	PaymentReference string    `json:"payment_reference"`
	Amount           string    `json:"amount"`
	Outcome          string    `json:"outcome"`
	Source           string    `json:"source"`
	Timestamp        time.Time `json:"timestamp"`
}

// FundingRecalculatedEvent is published when a campaign's total is corrected.
type FundingRecalculatedEvent struct {
	CampaignId    int64     `json:"campaign_id"`
	CurrentAmount string    `json:"current_amount"`
	Timestamp     time.Time `json:"timestamp"`
}

// AccountReadinessEvent is published when a payment account gains or loses readiness.
type AccountReadinessEvent struct {
	UserId           string    `json:"user_id"`
	AccountId        string    `json:"account_id"`
	Ready            bool      `json:"ready"`
	CampaignsUpdated int64     `json:"campaigns_updated"`
	Timestamp        time.Time `json:"timestamp"`
}

// CampaignStatusEvent is published on every lifecycle transition.
type CampaignStatusEvent struct {
	CampaignId int64     `json:"campaign_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	ActorId    string    `json:"actor_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// Noop drops events. It is used when no broker is configured or the broker is
// unreachable at startup.
type Noop struct{}

func (Noop) Publish(_ context.Context, routingKey string, _ interface{}) error {
	zap.L().Debug("Event publish skipped, no broker configured", zap.String("routing_key", routingKey))
	return nil
}

func (Noop) Close() {}

// RabbitPublisher publishes JSON events to a durable topic exchange.
type RabbitPublisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewRabbitPublisher dials the broker and declares the exchange.
func NewRabbitPublisher(amqpURL, exchange string) (*RabbitPublisher, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("invalid RabbitMQ URL: %w", err)
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(defaultDialTimeout)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	p := &RabbitPublisher{conn: conn, exchange: exchange}
	if err := p.openChannel(); err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

// NewPublisher returns a RabbitPublisher, or Noop when amqpURL is empty or the
// broker cannot be reached.
func NewPublisher(amqpURL, exchange string) Publisher {
	if strings.TrimSpace(amqpURL) == "" {
		zap.L().Info("RabbitMQ not configured, domain events disabled")
		return Noop{}
	}
	p, err := NewRabbitPublisher(amqpURL, exchange)
	if err != nil {
		zap.L().Warn("RabbitMQ unavailable, domain events disabled", zap.Error(err))
		return Noop{}
	}
	zap.L().Info("Domain event publisher connected", zap.String("exchange", p.exchange))
	return p
}

func (p *RabbitPublisher) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		ch.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", p.exchange, err)
	}
	p.channel = ch
	return nil
}

// Publish marshals payload as JSON and publishes it. A failed publish reopens
// the channel and retries once.
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", routingKey, err)
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}

	zap.L().Warn("Publish failed, reopening channel",
		zap.String("exchange", p.exchange),
		zap.String("routing_key", routingKey),
		zap.Error(err))

	if reopenErr := p.openChannel(); reopenErr != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, errors.Join(err, reopenErr))
	}
	if err := p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s after reopen: %w", routingKey, err)
	}
	return nil
}

func (p *RabbitPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// PublishBestEffort publishes and logs failures instead of returning them.
// Event delivery never fails the operation that produced the event.
func PublishBestEffort(ctx context.Context, p Publisher, routingKey string, payload interface{}) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, routingKey, payload); err != nil {
		zap.L().Warn("Failed to publish domain event",
			zap.String("routing_key", routingKey),
			zap.Error(err))
	}
}
