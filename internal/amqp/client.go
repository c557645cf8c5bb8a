package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"ledger/internal/core"
)

// Client publishes and consumes ledger events over a direct exchange with a
// single bound queue.
type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key matches the queue name on a direct exchange.
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishTransactionCreated emits a created event for a committed
// transaction.
func (c *Client) PublishTransactionCreated(ctx context.Context, t core.Transaction) error {
	body, err := NewTransactionCreatedMessage(t).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, TypeTransactionCreated, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published created event",
		"id", t.ID,
		"type", t.Type,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// PublishImportCompleted emits an event for a committed bulk import.
func (c *Client) PublishImportCompleted(ctx context.Context, count int) error {
	body, err := NewImportCompletedMessage(count).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, TypeImportCompleted, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published import event",
		"count", count,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

func (c *Client) publish(ctx context.Context, msgType string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName,
		c.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Type:         msgType,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// ConsumeEvents dispatches queue deliveries to the given handlers until ctx
// is cancelled. Messages that fail to decode are dropped; handler failures
// are requeued.
func (c *Client) ConsumeEvents(
	ctx context.Context,
	onCreated func(context.Context, *TransactionCreatedMessage) error,
	onImported func(context.Context, *ImportCompletedMessage) error,
) error {
	msgs, err := c.channel.Consume(
		c.queueName,
		"",    // consumer
		false, // auto-ack off, we ack manually
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming ledger events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping event consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.dispatch(ctx, delivery, onCreated, onImported)
		}
	}
}

func (c *Client) dispatch(
	ctx context.Context,
	delivery amqp091.Delivery,
	onCreated func(context.Context, *TransactionCreatedMessage) error,
	onImported func(context.Context, *ImportCompletedMessage) error,
) {
	var err error
	switch delivery.Type {
	case TypeTransactionCreated:
		var msg *TransactionCreatedMessage
		if msg, err = TransactionCreatedMessageFromJSON(delivery.Body); err == nil {
			if handlerErr := onCreated(ctx, msg); handlerErr != nil {
				slog.ErrorContext(ctx, "Created event handler failed", "id", msg.ID, "error", handlerErr)
				delivery.Nack(false, true) // requeue
				return
			}
		}
	case TypeImportCompleted:
		var msg *ImportCompletedMessage
		if msg, err = ImportCompletedMessageFromJSON(delivery.Body); err == nil {
			if handlerErr := onImported(ctx, msg); handlerErr != nil {
				slog.ErrorContext(ctx, "Import event handler failed", "count", msg.Count, "error", handlerErr)
				delivery.Nack(false, true) // requeue
				return
			}
		}
	default:
		slog.WarnContext(ctx, "Unknown event type", "type", delivery.Type)
		delivery.Nack(false, false)
		return
	}

	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal event", "type", delivery.Type, "error", err)
		delivery.Nack(false, false) // drop malformed payloads
		return
	}

	delivery.Ack(false)
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
