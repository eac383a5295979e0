// Package amqp announces locally stored rows and batches to the sync worker.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	publishTimeout = 5 * time.Second
	prefetch       = 1
	consumerTag    = "prodboard-worker"
)

// ErrDeliveriesClosed means the broker closed the consumer channel.
var ErrDeliveriesClosed = errors.New("amqp: delivery channel closed")

// Handler mirrors the row or batch a message points at.
type Handler func(context.Context, *SyncMessage) error

// Topology is the durable direct exchange and queue both sides declare.
// The queue is bound with its own name as routing key.
type Topology struct {
	Exchange string
	Queue    string
}

func (t Topology) declare(ch *amqp091.Channel) error {
	if err := ch.ExchangeDeclare(t.Exchange, amqp091.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", t.Exchange, err)
	}
	if _, err := ch.QueueDeclare(t.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", t.Queue, err)
	}
	if err := ch.QueueBind(t.Queue, t.Queue, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", t.Queue, err)
	}
	return nil
}

type Client struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	topology Topology

	// amqp091 channels are not safe for concurrent publishing.
	pubMu sync.Mutex
}

// NewClient dials url and declares the exchange and queue.
func NewClient(url, exchange, queue string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	c := &Client{conn: conn, channel: ch, topology: Topology{Exchange: exchange, Queue: queue}}
	if err := c.topology.declare(ch); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// PublishSync announces a stored row or batch. Delivery is persistent.
func (c *Client) PublishSync(ctx context.Context, kind SyncKind, refID int64) error {
	msg := NewSyncMessage(kind, refID)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	c.pubMu.Lock()
	err = c.channel.PublishWithContext(ctx, c.topology.Exchange, c.topology.Queue, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    msg.ID,
			Timestamp:    msg.Timestamp,
			Type:         string(kind),
			Body:         body,
		})
	c.pubMu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s %d: %w", kind, refID, err)
	}

	slog.DebugContext(ctx, "Published sync message",
		"message_id", msg.ID,
		"kind", kind,
		"ref_id", refID,
		"queue", c.topology.Queue)
	return nil
}

// ConsumeSync hands messages to handler one at a time until ctx is done.
// Messages the handler rejects are dropped; the worker's periodic sweep
// picks up whatever is still unsynced.
func (c *Client) ConsumeSync(ctx context.Context, handler Handler) error {
	if err := c.channel.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}
	deliveries, err := c.channel.ConsumeWithContext(ctx, c.topology.Queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming sync messages", "queue", c.topology.Queue)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrDeliveriesClosed
			}
			process(ctx, d.Body, d, handler)
		}
	}
}

// acknowledger is the part of amqp091.Delivery that process needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func process(ctx context.Context, body []byte, ack acknowledger, handler Handler) {
	msg, err := SyncMessageFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Dropping malformed sync message", "error", err)
		_ = ack.Nack(false, false)
		return
	}

	logger := slog.With("message_id", msg.ID, "kind", msg.Kind, "ref_id", msg.RefID)
	if err := handler(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "Failed to handle sync message", "error", err)
		_ = ack.Nack(false, false)
		return
	}
	_ = ack.Ack(false)
	logger.InfoContext(ctx, "Processed sync message")
}

func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
