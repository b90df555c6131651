// Package events carries change notifications between the services that
// write transactions and this analytics service over AMQP.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finance-analytics-backend/internal/logging"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler processes one decoded message. Returning an error requeues it.
type Handler func(ctx context.Context, msg *TransactionsChanged) error

const (
	defaultReconnectDelay    = time.Second
	defaultMaxReconnectDelay = 30 * time.Second
)

var errNotConnected = errors.New("not connected")

// Client publishes and consumes transaction change events on a topic
// exchange.
type Client struct {
	url          string
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	// configuredQueue is the name asked for; queueName is the one declared.
	configuredQueue string
	queueName       string
	logger          *logging.Logger

	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration
}

// NewConsumer returns a client that connects on the first call to
// ConsumeWithReconnect.
func NewConsumer(url, exchangeName, queueName string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Client{
		url:               url,
		exchangeName:      exchangeName,
		configuredQueue:   queueName,
		logger:            logger.Named("events"),
		reconnectDelay:    defaultReconnectDelay,
		maxReconnectDelay: defaultMaxReconnectDelay,
	}
}

// NewClient dials url and declares the exchange and this instance's queue.
// An empty queueName declares a server-named, exclusive queue that
// disappears with the connection.
func NewClient(url, exchangeName, queueName string, logger *logging.Logger) (*Client, error) {
	client := NewConsumer(url, exchangeName, queueName, logger)
	if err := client.connect(); err != nil {
		return nil, err
	}
	return client, nil
}

// connect replaces any previous connection with a fresh one.
func (c *Client) connect() error {
	c.Close()
	c.conn, c.channel = nil, nil

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	c.conn, c.channel = conn, channel

	if err := c.setup(); err != nil {
		c.Close()
		c.conn, c.channel = nil, nil
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	return nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	named := c.configuredQueue != ""
	q, err := c.channel.QueueDeclare(
		c.configuredQueue, // name
		named,             // durable
		!named,            // delete when unused
		!named,            // exclusive
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	c.queueName = q.Name

	err = c.channel.QueueBind(
		c.queueName,                   // queue name
		RoutingKeyTransactionsChanged, // routing key
		c.exchangeName,                // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishTransactionsChanged announces that ownerID's transactions changed.
func (c *Client) PublishTransactionsChanged(ctx context.Context, ownerID string) error {
	msg := NewTransactionsChanged(ownerID)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName,                // exchange
		RoutingKeyTransactionsChanged, // routing key
		false,                         // mandatory
		false,                         // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	c.logger.Info("published transactions changed",
		logging.Owner(ownerID),
		zap.String("exchange", c.exchangeName),
	)
	return nil
}

// Consume delivers messages to handler until ctx is done or the connection
// or channel closes.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	if c.channel == nil {
		return errNotConnected
	}
	closed := c.conn.NotifyClose(make(chan *amqp091.Error, 1))

	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.Info("started consuming", zap.String("queue", c.queueName))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("stopping message consumption", zap.Error(ctx.Err()))
			return ctx.Err()
		case amqpErr := <-closed:
			return fmt.Errorf("connection closed: %v", amqpErr)
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

// ConsumeWithReconnect runs Consume until ctx is done, reconnecting with
// exponential backoff whenever the connection is lost. It only returns
// ctx's error.
func (c *Client) ConsumeWithReconnect(ctx context.Context, handler Handler) error {
	for {
		if c.channel == nil {
			if err := c.redial(ctx); err != nil {
				return err
			}
		}

		err := c.Consume(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Error("event consumption interrupted, reconnecting",
			zap.Error(err),
			zap.Duration("retry_in", c.reconnectDelay),
		)
		c.Close()
		c.conn, c.channel = nil, nil

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

// redial connects, retrying with a doubling delay capped at
// maxReconnectDelay.
func (c *Client) redial(ctx context.Context) error {
	delay := c.reconnectDelay
	for attempt := 1; ; attempt++ {
		err := c.connect()
		if err == nil {
			c.logger.Info("connected to AMQP", zap.Int("attempt", attempt), zap.String("queue", c.queueName))
			return nil
		}
		c.logger.Error("failed to connect to AMQP",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, c.maxReconnectDelay)
	}
}

// outcome is what happened to a delivery.
type outcome int

const (
	acked outcome = iota
	rejected
	requeued
)

// handleDelivery acks processed messages, drops malformed ones and requeues
// messages whose handler failed.
func (c *Client) handleDelivery(ctx context.Context, delivery amqp091.Delivery, handler Handler) outcome {
	msg, err := TransactionsChangedFromJSON(delivery.Body)
	if err != nil {
		c.logger.Error("failed to decode message", zap.Error(err))
		_ = delivery.Nack(false, false)
		return rejected
	}

	if err := handler(ctx, msg); err != nil {
		c.logger.Error("failed to handle message", logging.Owner(msg.OwnerID), zap.Error(err))
		_ = delivery.Nack(false, true)
		return requeued
	}

	_ = delivery.Ack(false)
	c.logger.Debug("processed transactions changed", logging.Owner(msg.OwnerID))
	return acked
}

// Close closes the channel and connection.
func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
