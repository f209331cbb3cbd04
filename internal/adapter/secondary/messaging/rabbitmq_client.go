package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/toilaloc/research-fincode-payment/internal/port/output"
)

const (
	ExchangeName  = "payments"
	QueueName     = "authorization_hold_release"
	RoutingKey    = "payment.hold_release"
	PrefetchCount = 1 // Process one message at a time per worker
)

// HoldReleaseMessage asks the worker to release the provider authorization
// hold of a zero-settlement capture
type HoldReleaseMessage struct {
	LocalOrderRef string    `json:"local_order_ref"`
	Timestamp     time.Time `json:"timestamp"`
}

// RabbitMQClient is a secondary adapter that implements the
// HoldReleaseQueue output port
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitMQClient creates a new RabbitMQ client (returns interface for ports)
func NewRabbitMQClient(amqpURL string) (output.HoldReleaseQueue, error) {
	return NewRabbitMQClientConcrete(amqpURL)
}

// NewRabbitMQClientConcrete creates a new RabbitMQ client (returns concrete type for workers)
func NewRabbitMQClientConcrete(amqpURL string) (*RabbitMQClient, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Declare exchange
	err = channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	// Declare queue
	_, err = channel.QueueDeclare(
		QueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	// Bind queue to exchange
	err = channel.QueueBind(
		QueueName,
		RoutingKey,
		ExchangeName,
		false,
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: channel,
	}, nil
}

// PublishHoldRelease enqueues a hold-release request for a payment
func (c *RabbitMQClient) PublishHoldRelease(localOrderRef string) error {
	message := HoldReleaseMessage{
		LocalOrderRef: localOrderRef,
		Timestamp:     time.Now(),
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = c.channel.Publish(
		ExchangeName,
		RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // Make message persistent
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// ConsumeHoldReleases starts consuming hold-release messages. A handler
// error requeues the message; a nil return acknowledges and drops it, so
// handlers must swallow failures that retrying cannot fix.
func (c *RabbitMQClient) ConsumeHoldReleases(handler func(HoldReleaseMessage) error) error {
	// Set QoS to process one message at a time
	err := c.channel.Qos(
		PrefetchCount,
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := c.channel.Consume(
		QueueName,
		"",    // consumer tag
		false, // auto-ack (we'll manually ack after processing)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	log.Println("Started consuming hold-release messages...")

	go func() {
		for msg := range msgs {
			var releaseMsg HoldReleaseMessage
			if err := json.Unmarshal(msg.Body, &releaseMsg); err != nil {
				log.Printf("Error unmarshaling message: %v", err)
				msg.Ack(false) // malformed, retrying will not help
				continue
			}

			if err := handler(releaseMsg); err != nil {
				log.Printf("Error releasing hold for %s: %v", releaseMsg.LocalOrderRef, err)
				msg.Nack(false, true) // Requeue for retry
				continue
			}

			msg.Ack(false)
		}
	}()

	return nil
}

// Close closes the RabbitMQ connection
func (c *RabbitMQClient) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
