package fulfillment

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/fulfillment/internal/fulfillment/api"
)

// Module provides the fulfillment service to Fx.
var Module = fx.Provide(
	NewService,
	func(ops *api.Operations) Provider { return ops },
)
