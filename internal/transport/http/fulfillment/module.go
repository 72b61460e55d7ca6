package fulfillment

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	fulfillmentsvc "github.com/Additional-Code/fulfillment/internal/service/fulfillment"
)

// Module wires HTTP fulfillment handlers.
var Module = fx.Options(
	fx.Provide(
		func(svc *fulfillmentsvc.Service) OrderService { return svc },
		NewHandler,
	),
	fx.Invoke(func(e *echo.Echo, h *Handler) {
		Register(e, h)
	}),
)
