package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/fulfillment/internal/cache"
	"github.com/Additional-Code/fulfillment/internal/config"
	"github.com/Additional-Code/fulfillment/internal/entity"
	"github.com/Additional-Code/fulfillment/internal/fulfillment/api"
	"github.com/Additional-Code/fulfillment/internal/fulfillment/salesorder"
	"github.com/Additional-Code/fulfillment/internal/messaging"
	repo "github.com/Additional-Code/fulfillment/internal/repository/submission"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/fulfillment/service/fulfillment")

// EventOrderSubmitted is published after the provider accepts an order.
const EventOrderSubmitted = "order.submitted"

// Provider is the subset of the fulfillment API the service drives.
type Provider interface {
	Account() string
	CreateSalesOrder(ctx context.Context, order salesorder.SalesOrderRequest) (json.RawMessage, error)
	Acknowledge(ctx context.Context, orderNumber, submissionID string) (json.RawMessage, error)
	OrderStatus(ctx context.Context, orderNumber string) (json.RawMessage, error)
	ShipmentDetails(ctx context.Context, orderNumber string) (json.RawMessage, error)
}

// Service submits orders to the provider and tracks their outcome.
type Service struct {
	provider  Provider
	repo      *repo.Repository
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
	now       func() time.Time
}

type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Provider   Provider
	Repository *repo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider:  p.Provider,
		repo:      p.Repository,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
		now: time.Now,
	}
}

// SubmitOrder builds the sales order for view and hands it to the provider.
// The outcome is recorded whether or not the provider accepts it.
func (s *Service) SubmitOrder(ctx context.Context, view salesorder.OrderView) (*entity.Submission, error) {
	order := salesorder.Build(view, s.provider.Account())
	ctx, span := serviceTracer.Start(ctx, "FulfillmentService.SubmitOrder", trace.WithAttributes(
		attribute.String("order.number", order.OrderNumber()),
		attribute.String("submission.id", order.SubmissionID()),
	))
	defer span.End()

	if order.Empty() {
		return nil, errorbank.BadRequest("order has no line items",
			errorbank.WithDetail("order_number", order.OrderNumber()))
	}

	body, callErr := s.provider.CreateSalesOrder(ctx, order)

	submission := &entity.Submission{
		OrderNumber:  order.OrderNumber(),
		SubmissionID: order.SubmissionID(),
		Status:       entity.StatusSubmitted,
		Response:     string(body),
	}
	if callErr != nil {
		recordFailure(submission, callErr)
		span.RecordError(callErr)
		span.SetStatus(codes.Error, submission.ErrorKind)
	}

	if err := s.repo.Create(ctx, submission); err != nil {
		span.RecordError(err)
		s.logger.Error("persist submission failed",
			zap.String("order_number", submission.OrderNumber),
			zap.String("submission_id", submission.SubmissionID),
			zap.Error(err),
		)
		if callErr == nil {
			return nil, errorbank.Internal("failed to record submission", errorbank.WithCause(err))
		}
	} else {
		s.storeInCache(ctx, submission)
	}

	if callErr != nil {
		s.logger.Warn("order submission rejected",
			zap.String("order_number", submission.OrderNumber),
			zap.String("kind", submission.ErrorKind),
			zap.Error(callErr),
		)
		return submission, callErr
	}

	s.logger.Info("order submitted",
		zap.String("order_number", submission.OrderNumber),
		zap.String("submission_id", submission.SubmissionID),
	)
	s.publishSubmitted(ctx, submission)
	return submission, nil
}

// Acknowledge fetches the provider acknowledgement for a submission and
// records it. An empty submissionID selects the latest submission.
func (s *Service) Acknowledge(ctx context.Context, orderNumber, submissionID string) (*entity.Submission, error) {
	ctx, span := serviceTracer.Start(ctx, "FulfillmentService.Acknowledge", trace.WithAttributes(
		attribute.String("order.number", orderNumber),
		attribute.String("submission.id", submissionID),
	))
	defer span.End()

	submission, err := s.lookup(ctx, orderNumber, submissionID)
	if err != nil {
		return nil, err
	}

	body, callErr := s.provider.Acknowledge(ctx, submission.OrderNumber, submission.SubmissionID)
	if callErr != nil && Transient(callErr) {
		span.RecordError(callErr)
		span.SetStatus(codes.Error, "transient")
		return submission, callErr
	}

	if callErr != nil {
		recordFailure(submission, callErr)
		span.RecordError(callErr)
		span.SetStatus(codes.Error, submission.ErrorKind)
	} else {
		submission.Status = entity.StatusAcknowledged
		submission.ErrorKind = ""
		submission.ErrorMessage = ""
		submission.Response = string(body)
	}

	if err := s.repo.Update(ctx, submission); err != nil {
		span.RecordError(err)
		return submission, errorbank.Internal("failed to record acknowledgement", errorbank.WithCause(err))
	}
	// The acknowledged row need not be the latest one; let Get reload it.
	s.dropFromCache(ctx, submission.OrderNumber)

	s.logger.Info("order acknowledgement recorded",
		zap.String("order_number", submission.OrderNumber),
		zap.String("submission_id", submission.SubmissionID),
		zap.String("status", submission.Status),
	)
	return submission, callErr
}

// Get returns the latest submission for an order number, consulting cache first.
func (s *Service) Get(ctx context.Context, orderNumber string) (*entity.Submission, error) {
	ctx, span := serviceTracer.Start(ctx, "FulfillmentService.Get", trace.WithAttributes(attribute.String("order.number", orderNumber)))
	defer span.End()

	if submission, err := s.getFromCache(ctx, orderNumber); err == nil {
		return submission, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("submissions cache read failed", zap.String("order_number", orderNumber), zap.Error(err))
	}

	submission, err := s.repo.Latest(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("submission not found", errorbank.WithDetail("order_number", orderNumber))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load submission", errorbank.WithCause(err))
	}

	s.storeInCache(ctx, submission)
	return submission, nil
}

// List returns submissions in the given status, oldest first.
func (s *Service) List(ctx context.Context, status string, limit int) ([]entity.Submission, error) {
	ctx, span := serviceTracer.Start(ctx, "FulfillmentService.List", trace.WithAttributes(attribute.String("submission.status", status)))
	defer span.End()

	switch status {
	case entity.StatusSubmitted, entity.StatusAcknowledged, entity.StatusAlreadyInSystem, entity.StatusFailed:
	default:
		return nil, errorbank.BadRequest("unknown submission status", errorbank.WithDetail("status", status))
	}

	out, err := s.repo.ListByStatus(ctx, status, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list submissions", errorbank.WithCause(err))
	}
	return out, nil
}

// OrderStatus returns the provider's raw status document for an order.
func (s *Service) OrderStatus(ctx context.Context, orderNumber string) (json.RawMessage, error) {
	ctx, span := serviceTracer.Start(ctx, "FulfillmentService.OrderStatus", trace.WithAttributes(attribute.String("order.number", orderNumber)))
	defer span.End()

	body, err := s.provider.OrderStatus(ctx, orderNumber)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider error")
	}
	return body, err
}

// ShipmentDetails returns the provider's raw shipment document for an order.
func (s *Service) ShipmentDetails(ctx context.Context, orderNumber string) (json.RawMessage, error) {
	ctx, span := serviceTracer.Start(ctx, "FulfillmentService.ShipmentDetails", trace.WithAttributes(attribute.String("order.number", orderNumber)))
	defer span.End()

	body, err := s.provider.ShipmentDetails(ctx, orderNumber)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider error")
	}
	return body, err
}

// Transient reports whether err may succeed on a later attempt.
func Transient(err error) bool {
	switch errorbank.From(err).Kind() {
	case errorbank.KindUpstream, errorbank.KindUnauthorized, errorbank.KindInternal:
		return true
	default:
		return false
	}
}

func (s *Service) lookup(ctx context.Context, orderNumber, submissionID string) (*entity.Submission, error) {
	var (
		submission *entity.Submission
		err        error
	)
	if submissionID == "" {
		submission, err = s.repo.Latest(ctx, orderNumber)
	} else {
		submission, err = s.repo.Find(ctx, orderNumber, submissionID)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errorbank.NotFound("submission not found",
			errorbank.WithDetail("order_number", orderNumber),
			errorbank.WithDetail("submission_id", submissionID),
		)
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load submission", errorbank.WithCause(err))
	}
	return submission, nil
}

func recordFailure(submission *entity.Submission, err error) {
	appErr := errorbank.From(err)
	submission.Status = entity.StatusFailed
	if appErr.Kind() == errorbank.KindAlreadyInSystem {
		submission.Status = entity.StatusAlreadyInSystem
	}
	submission.ErrorKind = string(appErr.Kind())
	submission.ErrorMessage = appErr.Message()
	submission.Response = appErr.Response()
}

func (s *Service) publishSubmitted(ctx context.Context, submission *entity.Submission) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := SubmittedEvent{
		EventID:      uuid.NewString(),
		OrderNumber:  submission.OrderNumber,
		SubmissionID: submission.SubmissionID,
		SubmittedAt:  s.now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order submitted", zap.Error(err))
		return
	}
	headers := map[string]string{messaging.HeaderEventType: EventOrderSubmitted}
	if err := s.publisher.Publish(ctx, []byte(submission.OrderNumber), payload, headers); err != nil {
		s.logger.Error("publish order submitted",
			zap.String("order_number", submission.OrderNumber),
			zap.String("topic", s.messaging.topic),
			zap.Error(err),
		)
	}
}

func (s *Service) cacheKey(orderNumber string) string {
	return "submissions:" + orderNumber
}

func (s *Service) getFromCache(ctx context.Context, orderNumber string) (*entity.Submission, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	raw, err := s.cache.Get(ctx, s.cacheKey(orderNumber))
	if err != nil {
		return nil, err
	}
	var submission entity.Submission
	if err := json.Unmarshal(raw, &submission); err != nil {
		return nil, err
	}
	return &submission, nil
}

func (s *Service) storeInCache(ctx context.Context, submission *entity.Submission) {
	if s.cache == nil || submission == nil || submission.ID == "" {
		return
	}
	raw, err := json.Marshal(submission)
	if err == nil {
		err = s.cache.Set(ctx, s.cacheKey(submission.OrderNumber), raw, s.cacheTTL)
	}
	if err != nil {
		s.logger.Warn("submissions cache write failed", zap.String("order_number", submission.OrderNumber), zap.Error(err))
	}
}

func (s *Service) dropFromCache(ctx context.Context, orderNumber string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(orderNumber)); err != nil {
		s.logger.Warn("submissions cache delete failed", zap.String("order_number", orderNumber), zap.Error(err))
	}
}

// SubmittedEvent is emitted when the provider accepts an order.
type SubmittedEvent struct {
	EventID      string    `json:"event_id"`
	OrderNumber  string    `json:"order_number"`
	SubmissionID string    `json:"submission_id"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

var _ Provider = (*api.Operations)(nil)
