package fulfillment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/fulfillment/internal/adapter/shopify"
	"github.com/Additional-Code/fulfillment/internal/config"
	"github.com/Additional-Code/fulfillment/internal/dto"
	"github.com/Additional-Code/fulfillment/internal/entity"
	"github.com/Additional-Code/fulfillment/internal/fulfillment/salesorder"
	"github.com/Additional-Code/fulfillment/internal/presentation/http/response"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/fulfillment/transport/http/fulfillment")

// OrderService is the subset of the fulfillment service exposed over HTTP.
type OrderService interface {
	SubmitOrder(ctx context.Context, view salesorder.OrderView) (*entity.Submission, error)
	Acknowledge(ctx context.Context, orderNumber, submissionID string) (*entity.Submission, error)
	Get(ctx context.Context, orderNumber string) (*entity.Submission, error)
	OrderStatus(ctx context.Context, orderNumber string) (json.RawMessage, error)
	ShipmentDetails(ctx context.Context, orderNumber string) (json.RawMessage, error)
}

// Handler exposes the Shopify webhook and order endpoints over HTTP.
type Handler struct {
	svc    OrderService
	opts   shopify.Options
	secret string
	logger *zap.Logger
}

// NewHandler constructs a Handler.
func NewHandler(svc OrderService, cfg config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		svc: svc,
		opts: shopify.Options{
			DefaultCurrency:   cfg.Shopify.DefaultCurrency,
			DefaultFirstName:  cfg.Shopify.DefaultFirstName,
			OrganizationID:    cfg.Fulfillment.OrgID,
			ShippingServiceID: cfg.Fulfillment.ShippingServiceID,
		},
		secret: cfg.Shopify.WebhookSecret,
		logger: logger,
	}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/webhooks/shopify/orders", h.receiveOrder)

	g := e.Group("/orders")
	g.GET("/:number", h.get)
	g.GET("/:number/status", h.status)
	g.GET("/:number/shipment", h.shipment)
	g.POST("/:number/acknowledge", h.acknowledge)
}

func (h *Handler) receiveOrder(c echo.Context) error {
	b := response.New(c)

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return b.WithError(errorbank.BadRequest("unreadable body", errorbank.WithCause(err))).Build()
	}
	if h.secret != "" && !shopify.Verify(h.secret, body, c.Request().Header.Get(shopify.HMACHeader)) {
		return b.WithStatus(http.StatusUnauthorized).WithError(errorbank.Unauthorized("invalid webhook signature")).Build()
	}

	order, err := shopify.Parse(body, h.opts)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "webhooks.shopify.orders",
		trace.WithAttributes(attribute.String("order.number", order.OrderNumber())))
	defer span.End()

	submission, err := h.svc.SubmitOrder(ctx, order)
	if submission != nil {
		b.WithMeta("submission", toDTO(submission))
	}
	if err != nil {
		h.logger.Warn("order submission failed",
			zap.String("order_number", order.OrderNumber()),
			zap.Error(err),
		)
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusAccepted).WithData(toDTO(submission)).Build()
}

func (h *Handler) get(c echo.Context) error {
	b := response.New(c)
	ctx, span := h.span(c, "orders.get")
	defer span.End()

	submission, err := h.svc.Get(ctx, c.Param("number"))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(submission)).Build()
}

func (h *Handler) status(c echo.Context) error {
	b := response.New(c)
	ctx, span := h.span(c, "orders.status")
	defer span.End()

	body, err := h.svc.OrderStatus(ctx, c.Param("number"))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(body).Build()
}

func (h *Handler) shipment(c echo.Context) error {
	b := response.New(c)
	ctx, span := h.span(c, "orders.shipment")
	defer span.End()

	body, err := h.svc.ShipmentDetails(ctx, c.Param("number"))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(body).Build()
}

func (h *Handler) acknowledge(c echo.Context) error {
	b := response.New(c)

	var payload dto.AcknowledgeRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.SubmissionID == "" {
		payload.SubmissionID = c.QueryParam("submission_id")
	}

	ctx, span := h.span(c, "orders.acknowledge")
	defer span.End()

	submission, err := h.svc.Acknowledge(ctx, c.Param("number"), payload.SubmissionID)
	if submission != nil {
		b.WithMeta("submission", toDTO(submission))
	}
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(submission)).Build()
}

func (h *Handler) span(c echo.Context, name string) (context.Context, trace.Span) {
	return httpTracer.Start(c.Request().Context(), name,
		trace.WithAttributes(attribute.String("order.number", c.Param("number"))))
}

func toDTO(s *entity.Submission) dto.SubmissionResponse {
	return dto.SubmissionResponse{
		ID:           s.ID,
		OrderNumber:  s.OrderNumber,
		SubmissionID: s.SubmissionID,
		Status:       s.Status,
		ErrorKind:    s.ErrorKind,
		ErrorMessage: s.ErrorMessage,
		Response:     response.RawBody(s.Response),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}
