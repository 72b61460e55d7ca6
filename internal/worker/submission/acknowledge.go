package submission

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/fulfillment/internal/entity"
	"github.com/Additional-Code/fulfillment/internal/messaging"
	fulfillmentsvc "github.com/Additional-Code/fulfillment/internal/service/fulfillment"
	"github.com/Additional-Code/fulfillment/internal/worker"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/fulfillment/worker/submission")

// Module registers submission worker handlers.
var Module = fx.Module("worker_submission",
	fx.Provide(
		fx.Annotate(
			NewAcknowledgeHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// Acknowledger records provider acknowledgements.
type Acknowledger interface {
	Acknowledge(ctx context.Context, orderNumber, submissionID string) (*entity.Submission, error)
}

// NewAcknowledgeHandler acknowledges every submitted order. Permanent provider
// errors are already recorded on the submission, so the message is committed;
// transient ones are returned for redelivery.
func NewAcknowledgeHandler(logger *zap.Logger, svc *fulfillmentsvc.Service) worker.HandlerRegistration {
	return worker.HandlerRegistration{
		EventType: fulfillmentsvc.EventOrderSubmitted,
		Handler:   acknowledgeHandler(logger, svc),
	}
}

func acknowledgeHandler(logger *zap.Logger, svc Acknowledger) messaging.Handler {
	return func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.submissions.acknowledge", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.Int64("messaging.offset", msg.Offset),
		))
		defer span.End()

		var event fulfillmentsvc.SubmittedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order submitted", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return nil
		}
		span.SetAttributes(attribute.String("order.number", event.OrderNumber))

		submission, err := svc.Acknowledge(ctx, event.OrderNumber, event.SubmissionID)
		if err != nil {
			span.RecordError(err)
			if fulfillmentsvc.Transient(err) {
				span.SetStatus(codes.Error, "transient")
				return err
			}
			logger.Warn("order acknowledgement failed",
				zap.String("event_id", event.EventID),
				zap.String("order_number", event.OrderNumber),
				zap.String("kind", string(errorbank.From(err).Kind())),
				zap.Error(err),
			)
			return nil
		}

		logger.Info("order acknowledged",
			zap.String("event_id", event.EventID),
			zap.String("order_number", submission.OrderNumber),
			zap.String("status", submission.Status),
		)
		return nil
	}
}
