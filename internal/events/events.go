// Package events publishes chat domain events to RabbitMQ so other services
// (notifications, moderation) can react without polling the database.
//
// Publishing is best effort. Callers log a failed publish and carry on; the
// database write that triggered the event has already succeeded.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Event types.
const (
	ChatOpened  = "chat.opened"
	ChatMessage = "chat.message"
)

// QueueName is the durable queue every event is routed to.
const QueueName = "foodshare.chat"

type Event struct {
	Type       string    `json:"type"`
	ChatID     string    `json:"chatId"`
	PostID     string    `json:"postId,omitempty"`
	SenderID   string    `json:"senderId"`
	MessageID  string    `json:"messageId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// connection is the part of *amqp.Connection the publisher uses.
type connection interface {
	IsClosed() bool
	Close() error
}

// dialFunc opens a connection and a channel with the queue declared.
type dialFunc func(url string) (connection, channel, error)

// AMQPPublisher keeps one connection and channel open for the life of the
// process and redials once if the broker dropped them.
type AMQPPublisher struct {
	url  string
	dial dialFunc

	mu   sync.Mutex
	conn connection
	ch   channel
}

var _ Publisher = (*AMQPPublisher)(nil)

// NewAMQPPublisher dials url and declares the queue. It fails fast so a
// misconfigured broker shows up at startup, not on the first chat.
func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	return newPublisher(url, dialAMQP)
}

func newPublisher(url string, dial dialFunc) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, dial: dial}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func dialAMQP(url string) (connection, channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("events: dialing broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("events: opening channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		QueueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("events: declaring queue: %w", err)
	}
	return conn, ch, nil
}

// connect must be called with mu held (or before p is shared).
func (p *AMQPPublisher) connect() error {
	conn, ch, err := p.dial(p.url)
	if err != nil {
		return err
	}
	p.conn, p.ch = conn, ch
	return nil
}

// Publish sends ev as a persistent JSON message on the default exchange.
func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshaling %s: %w", ev.Type, err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.OccurredAt,
		Type:         ev.Type,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() || p.ch.IsClosed() {
		p.closeLocked()
		if err := p.connect(); err != nil {
			return err
		}
	}

	if err := p.ch.PublishWithContext(ctx, "", QueueName, false, false, msg); err != nil {
		return fmt.Errorf("events: publishing %s: %w", ev.Type, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *AMQPPublisher) closeLocked() error {
	var err error
	if p.ch != nil {
		p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err = p.conn.Close()
		p.conn = nil
	}
	return err
}

// Noop discards events. Used when no broker is configured.
type Noop struct{}

var _ Publisher = Noop{}

func (Noop) Publish(context.Context, Event) error { return nil }
