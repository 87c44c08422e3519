package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/givance/webserver-sub009/internal/app"
	"github.com/givance/webserver-sub009/internal/queue"
	"github.com/givance/webserver-sub009/internal/timing"
	"github.com/givance/webserver-sub009/internal/util"
	"github.com/givance/webserver-sub009/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	util.LoadEnv()
	app.InitLogger("")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := app.LoadConfig()
	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize", "err", err)
	}
	defer a.Close()
	app.WarmUp(ctx, a.AI)

	// Init rabbitmq
	conn, err := queue.Init(ctx)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}
	publisher := queue.NewPublisher(ch)

	processor := queue.NewProcessor(a.Orchestrator, a.Generator, a.Store, a.Locks, publisher).
		WithTimer(timing.New(a.Pool))

	// A single consumer channel with prefetch=1 delivers one message at a
	// time across all queues.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			consumerTag := fmt.Sprintf("%s_consumer", qName)
			msgs, err := consumerCh.Consume(
				qName,
				consumerTag,
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("[Worker] Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("[Worker] Message channel closed", "queue", qName)
						stop()
						return
					}
					select {
					case messageChan <- queuedMessage{msg: msg, queueName: qName}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(queueName)
	}

	logger.Info("[Worker] Listening for messages", "queues", queue.Queues)

	for {
		select {
		case <-ctx.Done():
			logger.Info("[Worker] Shutdown signal received, exiting...")
			return
		case qm := <-messageChan:
			startTime := time.Now()
			logger.Info("[Worker] Received message", "queue", qm.queueName)

			processingErr := processor.Process(ctx, qm.queueName, qm.msg.Body)
			if processingErr != nil {
				logger.Error("[Worker] Error processing message", "queue", qm.queueName, "err", processingErr)
				queue.HandleProcessingError(consumerCh, qm.msg, qm.queueName, cfg.MaxRetries, processingErr)
			} else {
				if err := qm.msg.Ack(false); err != nil {
					logger.Error("[Worker] Failed to ack message", "err", err)
				}
				logger.Info("[Worker] Message processed successfully", "queue", qm.queueName)
			}

			app.LogAIMetrics(a.AI)
			logger.Info("[Worker] Processing time", "duration", time.Since(startTime).Round(time.Millisecond))
		}
	}
}
