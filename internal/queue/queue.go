package queue

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/givance/webserver-sub009/internal/util"
	"github.com/givance/webserver-sub009/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	AnalysisQueue = "analysis_queue"
	JourneyQueue  = "journey_queue"

	PubSubExchange = "pubsub_exchange"
)

// Queues lists every work queue the worker consumes.
var Queues = []string{AnalysisQueue, JourneyQueue}

func connectionURL(user, pass, host, port string) string {
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "5672"
	}
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(user, pass),
		Host:   host + ":" + port,
		Path:   "/",
	}
	return u.String()
}

// Init dials RabbitMQ from the RABBITMQ_* environment, retrying while the
// broker is starting.
func Init(ctx context.Context) (*amqp091.Connection, error) {
	connURL := connectionURL(
		util.GetEnv("RABBITMQ_USER"),
		util.GetEnv("RABBITMQ_PASSWORD"),
		util.GetEnv("RABBITMQ_HOST"),
		util.GetEnv("RABBITMQ_PORT"),
	)

	return util.RetryWithBackoff(ctx, 10, time.Second, 15*time.Second, func(ctx context.Context) (*amqp091.Connection, error) {
		conn, err := amqp091.Dial(connURL)
		if err != nil {
			logger.Warn("[Queue] RabbitMQ not ready", "err", err)
		}
		return conn, err
	})
}

// SetupQueues declares the pubsub exchange and, for every name, the work
// queue with its dead-letter queue and a retry queue that dead-letters back
// into the work queue after 10 seconds.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	err := ch.ExchangeDeclare(
		PubSubExchange,
		"topic",
		false,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("exchange declare %s: %w", PubSubExchange, err)
	}

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
			return fmt.Errorf("queue declare %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		_, err = ch.QueueDeclare(
			dlqName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("queue declare %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err = ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(10000),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("queue declare %s: %w", retryName, err)
		}
	}

	return nil
}

// channel is the publishing half of *amqp091.Channel.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Publisher serializes publishes on one channel.
type Publisher struct {
	mu sync.Mutex
	ch channel
}

func NewPublisher(ch *amqp091.Channel) *Publisher {
	return &Publisher{ch: ch}
}

// PublishFIFO puts data on the named work queue.
func (p *Publisher) PublishFIFO(queueName string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.Publish(
		"",
		queueName,
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

// PublishTopic broadcasts data on the pubsub exchange.
func (p *Publisher) PublishTopic(topic string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.Publish(
		PubSubExchange,
		topic,
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
