package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/fulfillment/internal/cache"
	"github.com/Additional-Code/fulfillment/internal/config"
	"github.com/Additional-Code/fulfillment/internal/database"
	"github.com/Additional-Code/fulfillment/internal/fulfillment/api"
	"github.com/Additional-Code/fulfillment/internal/fulfillment/token"
	"github.com/Additional-Code/fulfillment/internal/logger"
	"github.com/Additional-Code/fulfillment/internal/messaging"
	"github.com/Additional-Code/fulfillment/internal/observability"
	repositorysubmission "github.com/Additional-Code/fulfillment/internal/repository/submission"
	grpcserver "github.com/Additional-Code/fulfillment/internal/server/grpc"
	httpserver "github.com/Additional-Code/fulfillment/internal/server/http"
	servicefulfillment "github.com/Additional-Code/fulfillment/internal/service/fulfillment"
	transporthttp "github.com/Additional-Code/fulfillment/internal/transport/http"
	"github.com/Additional-Code/fulfillment/internal/worker"
	workersubmission "github.com/Additional-Code/fulfillment/internal/worker/submission"
)

// Provider wires what is needed to talk to the fulfillment API: credentials,
// the shared token cache and the resilient client.
var Provider = fx.Options(
	config.Module,
	logger.Module,
	cache.Module,
	token.Module,
	api.Module,
	api.OperationsModule,
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	Provider,
	database.Module,
	messaging.Module,
	observability.Module,
	repositorysubmission.Module,
	servicefulfillment.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workersubmission.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
