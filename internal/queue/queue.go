package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/worklens/backend/internal/util"
	"github.com/worklens/backend/pkg/logger"
)

// Queue names consumed by the worker.
const (
	RebuildQueue = "rebuild_queue"
	UpdateQueue  = "update_queue"
)

// Queues lists every work queue in consumption order.
var Queues = []string{RebuildQueue, UpdateQueue}

const (
	retryDelayMs = int32(10000)
	// MaxRetries is the number of redeliveries before a message moves to the
	// dead-letter queue.
	MaxRetries = 10
)

// Init connects to RabbitMQ using the RABBITMQ_* environment. The broker may
// still be starting, so the dial is retried.
func Init(ctx context.Context) *amqp091.Connection {
	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnv("RABBITMQ_USER"),
		util.GetEnv("RABBITMQ_PASSWORD"),
		util.GetEnv("RABBITMQ_HOST"),
		util.GetEnv("RABBITMQ_PORT"),
	)

	conn, err := util.RetryWithContext(ctx, 5, func(context.Context) (*amqp091.Connection, error) {
		conn, err := amqp091.Dial(connURL)
		if err != nil {
			logger.Warn("RabbitMQ not reachable yet", "err", err)
			time.Sleep(2 * time.Second)
		}
		return conn, err
	})
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	return conn
}

// SetupQueues declares each work queue together with its retry queue and its
// dead-letter queue. The retry queue has no consumer; messages parked there
// expire back onto the work queue.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	for _, name := range queueNames {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("declaring %s: %w", name, err)
		}

		_, err = ch.QueueDeclare(
			name+"_dlq",
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("declaring %s_dlq: %w", name, err)
		}

		_, err = ch.QueueDeclare(
			name+"_retry",
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             retryDelayMs,
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("declaring %s_retry: %w", name, err)
		}
	}
	return nil
}

// PublishFIFO publishes a persistent message onto the default exchange.
func PublishFIFO(ch *amqp091.Channel, queueName string, data []byte) error {
	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	return ch.Publish(
		"",
		q.Name,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         data,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
}
