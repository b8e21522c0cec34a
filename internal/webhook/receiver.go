package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fekuna/omnipos-inventory-sync/internal/platform"
	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile"
	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile/dto"
	"github.com/fekuna/omnipos-inventory-sync/pkg/logger"
	"github.com/fekuna/omnipos-inventory-sync/pkg/validator"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Delivery is a provider webhook as forwarded by the edge gateway. Payload is
// the raw request body the signature was computed over.
type Delivery struct {
	Platform   string          `json:"platform" validate:"required,oneof=bigcommerce shopify clover"`
	Topic      string          `json:"topic"`
	DeliveryID string          `json:"delivery_id"`
	Signature  string          `json:"signature"`
	Payload    json.RawMessage `json:"payload" validate:"required"`
}

// Ack is returned for every delivery. Providers retry anything that is not
// acknowledged, so processing errors are logged instead of surfaced.
type Ack struct {
	Accepted  bool `json:"accepted"`
	Processed int  `json:"processed"`
	Skipped   int  `json:"skipped"`
	Failed    int  `json:"failed"`
}

// Source binds a connected platform store to the tenant that owns it.
type Source struct {
	TenantID string
	// Secret verifies delivery signatures. Deliveries for a source without
	// one are rejected.
	Secret  string
	Adapter platform.Adapter
}

type Receiver struct {
	sources          map[string]Source
	uc               reconcile.UseCase
	enableEnrichment bool
	tracer           trace.Tracer
	logger           logger.ZapLogger
}

func NewReceiver(uc reconcile.UseCase, sources []Source, enableEnrichment bool, log logger.ZapLogger) *Receiver {
	byPlatform := make(map[string]Source, len(sources))
	for _, s := range sources {
		byPlatform[s.Adapter.Platform()] = s
	}
	return &Receiver{
		sources:          byPlatform,
		uc:               uc,
		enableEnrichment: enableEnrichment,
		tracer:           otel.Tracer("omnipos-inventory-sync/webhook"),
		logger:           log,
	}
}

// WebhookSource is the history source recorded for webhook-driven changes.
func WebhookSource(platformName, storeID string) string {
	return fmt.Sprintf("%s_webhook_update_%s", platformName, storeID)
}

func (r *Receiver) Handle(ctx context.Context, d *Delivery) *Ack {
	ack := &Ack{Accepted: true}

	ctx, span := r.tracer.Start(ctx, "webhook.Handle", trace.WithAttributes(
		attribute.String("platform", d.Platform),
		attribute.String("topic", d.Topic),
	))
	defer span.End()

	if err := validator.Validate(d); err != nil {
		r.logger.Error("Invalid webhook delivery", zap.Error(err))
		return ack
	}

	src, ok := r.sources[d.Platform]
	if !ok {
		r.logger.Warn("Webhook for unconfigured platform", zap.String("platform", d.Platform))
		return ack
	}

	if src.Secret == "" {
		r.logger.Error("Rejected webhook delivery: no signing secret configured",
			zap.String("platform", d.Platform),
			zap.String("delivery_id", d.DeliveryID),
		)
		return ack
	}
	if err := VerifySignature(src.Secret, d.Payload, d.Signature); err != nil {
		r.logger.Error("Rejected webhook delivery",
			zap.String("platform", d.Platform),
			zap.String("delivery_id", d.DeliveryID),
			zap.Error(err),
		)
		return ack
	}

	env, err := ParseEnvelope(d.Platform, d.Topic, d.Payload)
	if err != nil {
		if errors.Is(err, ErrUnsupportedEvent) {
			r.logger.Debug("Ignoring webhook event", zap.String("platform", d.Platform), zap.Error(err))
		} else {
			r.logger.Error("Failed to parse webhook payload", zap.String("platform", d.Platform), zap.Error(err))
		}
		return ack
	}

	deliveryID := d.DeliveryID
	if deliveryID == "" {
		deliveryID = env.DeliveryID
	}

	for _, change := range env.Changes {
		switch r.apply(ctx, src, change, deliveryID) {
		case outcomeProcessed:
			ack.Processed++
		case outcomeSkipped:
			ack.Skipped++
		default:
			ack.Failed++
		}
	}

	span.SetAttributes(
		attribute.Int("processed", ack.Processed),
		attribute.Int("failed", ack.Failed),
	)
	return ack
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeProcessed
	outcomeSkipped
)

func (r *Receiver) apply(ctx context.Context, src Source, change Change, deliveryID string) outcome {
	platformName := src.Adapter.Platform()
	storeID := change.StoreID
	if storeID == "" {
		storeID = src.Adapter.StoreID()
	}
	if want := src.Adapter.StoreID(); want != "" && storeID != want {
		r.logger.Warn("Webhook for unknown store",
			zap.String("platform", platformName),
			zap.String("store_id", storeID),
		)
		return outcomeSkipped
	}

	items, err := platform.FetchRef(ctx, src.Adapter, change.Ref)
	if errors.Is(err, platform.ErrItemNotFound) {
		r.logger.Info("Webhook item no longer exists",
			zap.String("platform", platformName),
			zap.String("ref", change.Ref),
		)
		return outcomeSkipped
	}
	if err != nil {
		r.logger.Error("Failed to refetch webhook item",
			zap.String("platform", platformName),
			zap.String("ref", change.Ref),
			zap.Error(err),
		)
		return outcomeFailed
	}

	res, err := r.uc.Reconcile(ctx, &dto.ReconcileInput{
		TenantID: src.TenantID,
		Source:   WebhookSource(platformName, storeID),
		Items:    items,
		Options: dto.Options{
			EnableEnrichment: r.enableEnrichment,
			Webhook:          true,
			DeliveryID:       deliveryID,
			Platform:         platformName,
		},
	})
	if err != nil {
		r.logger.Error("Webhook reconcile rejected",
			zap.String("tenant_id", src.TenantID),
			zap.String("ref", change.Ref),
			zap.Error(err),
		)
		return outcomeFailed
	}
	if !res.Success() {
		r.logger.Error("Webhook item failed to reconcile",
			zap.String("tenant_id", src.TenantID),
			zap.String("ref", change.Ref),
			zap.Strings("errors", res.Errors),
		)
		return outcomeFailed
	}
	return outcomeProcessed
}
