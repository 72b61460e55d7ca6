package submission

import "go.uber.org/fx"

// Module provides the submission repository to Fx.
var Module = fx.Provide(NewRepository)
