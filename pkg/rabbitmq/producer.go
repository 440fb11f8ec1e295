/**
 * @description
 * This package provides a producer for publishing loyalty events to RabbitMQ:
 * successful reward issuances, inventory exhaustion alerts for operators, and
 * reconciliation markers for the saga's partial-failure windows.
 *
 * @dependencies
 * - context, encoding/json, time: Standard Go libraries.
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// EventsExchange is the topic exchange all loyalty events are published to.
const EventsExchange = "loyalty.events"

// RewardIssuedEvent is published after an issuance run completes.
type RewardIssuedEvent struct {
	MerchantAddress   string    `json:"merchant_address"`
	RewardType        string    `json:"reward_type"`
	RewardAddress     string    `json:"reward_address"`
	TransferSignature string    `json:"transfer_signature"`
	OnChainTx         string    `json:"on_chain_tx"`
	Timestamp         time.Time `json:"timestamp"`
}

// InventoryExhaustedEvent alerts operators that a reward category has no
// unreserved items left. Provisioning problem, not a usage error.
type InventoryExhaustedEvent struct {
	RewardType      string    `json:"reward_type"`
	MerchantAddress string    `json:"merchant_address"`
	Timestamp       time.Time `json:"timestamp"`
}

// ReconcileRequiredEvent marks an issuance run stopped inside one of the
// known partial-failure windows so an external reconciliation job can repair
// it.
type ReconcileRequiredEvent struct {
	RunID           uuid.UUID `json:"run_id"`
	MerchantAddress string    `json:"merchant_address"`
	RewardType      string    `json:"reward_type"`
	RewardAddress   string    `json:"reward_address"`
	Step            string    `json:"step"`
	Reason          string    `json:"reason"`
	Timestamp       time.Time `json:"timestamp"`
}

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	PublishRewardIssued(ctx context.Context, event RewardIssuedEvent) error
	PublishInventoryExhausted(ctx context.Context, event InventoryExhaustedEvent) error
	PublishReconcileRequired(ctx context.Context, event ReconcileRequiredEvent) error
	Close()
}

// EventProducer holds the RabbitMQ connection and channel for publishing
// messages.
type EventProducer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// EventProducerFallback is a minimal no-op publisher used when RabbitMQ is
// unavailable at startup.
type EventProducerFallback struct{}

func (p *EventProducerFallback) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	log.Printf("level=warn component=rabbitmq_producer mode=fallback msg=\"publish skipped\" exchange=%s routing_key=%s", exchange, routingKey)
	return nil
}

func (p *EventProducerFallback) PublishRewardIssued(ctx context.Context, event RewardIssuedEvent) error {
	return p.Publish(ctx, EventsExchange, "loyalty.reward.issued", event)
}

func (p *EventProducerFallback) PublishInventoryExhausted(ctx context.Context, event InventoryExhaustedEvent) error {
	return p.Publish(ctx, EventsExchange, "loyalty.inventory.exhausted", event)
}

func (p *EventProducerFallback) PublishReconcileRequired(ctx context.Context, event ReconcileRequiredEvent) error {
	return p.Publish(ctx, EventsExchange, "loyalty.reconcile.required", event)
}

func (p *EventProducerFallback) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	// If any stray characters precede the scheme, slice from first occurrence of amqp
	idx := strings.Index(strings.ToLower(clean), "amqp")
	if idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer creates and returns a new EventProducer.
func NewEventProducer(amqpURL string) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	// Use a bounded dial timeout so startup does not hang indefinitely
	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &EventProducer{conn: conn, channel: ch}, nil
}

// Publish sends a message to a specific exchange with a routing key.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	if err := p.channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	); err != nil {
		log.Printf("level=warn component=rabbitmq_producer msg=\"exchange declare failed; reopening channel\" exchange=%s err=%v", exchange, err)
		ch, chErr := p.conn.Channel()
		if chErr != nil {
			return chErr
		}
		p.channel = ch
		if err2 := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err2 != nil {
			return err2
		}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		log.Printf("level=error component=rabbitmq_producer msg=\"json marshal failed\" exchange=%s routing_key=%s err=%v", exchange, routingKey, err)
		return err
	}

	publishing := amqp091.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        jsonBody,
	}
	err = p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, publishing)
	if err != nil {
		log.Printf("level=warn component=rabbitmq_producer msg=\"publish failed; reopening channel\" exchange=%s routing_key=%s err=%v", exchange, routingKey, err)
		// One-shot retry: reopen channel and try again
		ch, chErr := p.conn.Channel()
		if chErr != nil {
			return err
		}
		p.channel = ch
		if exErr := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); exErr != nil {
			return err
		}
		return p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, publishing)
	}
	return nil
}

// PublishRewardIssued publishes a reward issuance event.
func (p *EventProducer) PublishRewardIssued(ctx context.Context, event RewardIssuedEvent) error {
	return p.Publish(ctx, EventsExchange, "loyalty.reward.issued", event)
}

// PublishInventoryExhausted publishes an inventory exhaustion alert.
func (p *EventProducer) PublishInventoryExhausted(ctx context.Context, event InventoryExhaustedEvent) error {
	return p.Publish(ctx, EventsExchange, "loyalty.inventory.exhausted", event)
}

// PublishReconcileRequired publishes a reconciliation marker for a partial
// issuance run.
func (p *EventProducer) PublishReconcileRequired(ctx context.Context, event ReconcileRequiredEvent) error {
	return p.Publish(ctx, EventsExchange, "loyalty.reconcile.required", event)
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (p *EventProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
