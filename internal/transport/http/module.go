package http

import (
	"go.uber.org/fx"

	fulfillmenttransport "github.com/Additional-Code/fulfillment/internal/transport/http/fulfillment"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	fulfillmenttransport.Module,
)
