package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fekuna/omnipos-inventory-sync/internal/webhook"
	"github.com/fekuna/omnipos-inventory-sync/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is satisfied by *broker.KafkaConsumer.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type DeliveryHandler interface {
	Handle(ctx context.Context, d *webhook.Delivery) *webhook.Ack
}

type WebhookListener struct {
	consumer   MessageReader
	handler    DeliveryHandler
	logger     logger.ZapLogger
	retryDelay time.Duration
}

func NewWebhookListener(consumer MessageReader, handler DeliveryHandler, logger logger.ZapLogger) *WebhookListener {
	return &WebhookListener{
		consumer:   consumer,
		handler:    handler,
		logger:     logger,
		retryDelay: time.Second,
	}
}

func (l *WebhookListener) Start(ctx context.Context) {
	l.logger.Info("Starting Webhook Kafka Listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping Webhook Kafka Listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(l.retryDelay)
				continue
			}
			l.processMessage(ctx, msg)
		}
	}
}

func (l *WebhookListener) processMessage(ctx context.Context, msg kafka.Message) {
	var d webhook.Delivery
	if err := json.Unmarshal(msg.Value, &d); err != nil {
		l.logger.Error("Failed to unmarshal webhook delivery",
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return
	}

	ack := l.handler.Handle(ctx, &d)
	l.logger.Info("Processed webhook delivery",
		zap.String("platform", d.Platform),
		zap.String("topic", d.Topic),
		zap.String("delivery_id", d.DeliveryID),
		zap.Int("processed", ack.Processed),
		zap.Int("skipped", ack.Skipped),
		zap.Int("failed", ack.Failed),
	)
}
