// README: RabbitMQ publisher for ride offers (topic exchanges, JSON bodies).
package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 3 * time.Second

var ErrBrokerClosed = errors.New("amqp closed")

type Broker struct {
	url      string
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

func NewBroker(url string) (*Broker, error) {
	b := &Broker{url: url, declared: make(map[string]bool)}
	if err := b.connect(); err != nil {
		return nil, fmt.Errorf("rabbit connect: %w", err)
	}
	return b, nil
}

// PublishJSON publishes msg as a persistent JSON message. A dropped
// connection is redialled once before giving up.
func (b *Broker) PublishJSON(ctx context.Context, exchange, routingKey string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.aliveLocked() {
		if err := b.connectLocked(); err != nil {
			return fmt.Errorf("%w: %v", ErrBrokerClosed, err)
		}
	}
	if err := b.ensureExchangeLocked(exchange); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	pubctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return b.ch.PublishWithContext(pubctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch != nil && !b.ch.IsClosed() {
		if err := b.ch.Close(); err != nil {
			return fmt.Errorf("close rabbitmq channel: %w", err)
		}
	}
	if b.conn != nil && !b.conn.IsClosed() {
		if err := b.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}

func (b *Broker) connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connectLocked()
}

func (b *Broker) connectLocked() error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	b.conn = conn
	b.ch = ch
	b.declared = make(map[string]bool)
	return nil
}

func (b *Broker) aliveLocked() bool {
	return b.conn != nil && !b.conn.IsClosed() && b.ch != nil && !b.ch.IsClosed()
}

func (b *Broker) ensureExchangeLocked(name string) error {
	if b.declared[name] {
		return nil
	}
	if err := b.ch.ExchangeDeclare(name, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	b.declared[name] = true
	return nil
}
