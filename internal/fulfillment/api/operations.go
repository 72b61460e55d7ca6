package api

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/fx"

	"github.com/Additional-Code/fulfillment/internal/config"
	"github.com/Additional-Code/fulfillment/internal/fulfillment/endpoint"
	"github.com/Additional-Code/fulfillment/internal/fulfillment/salesorder"
)

// Operations exposes the provider endpoints for one account.
type Operations struct {
	client  *Client
	urls    endpoint.URLSet
	account string
}

// NewOperations binds client to the account and URL set.
func NewOperations(client *Client, urls endpoint.URLSet, account string) *Operations {
	return &Operations{client: client, urls: urls, account: account}
}

// OperationsParams defines dependencies for constructing Operations through Fx.
type OperationsParams struct {
	fx.In

	Config config.Config
	Client *Client
}

// OperationsModule provides Operations to Fx.
var OperationsModule = fx.Provide(func(p OperationsParams) *Operations {
	return NewOperations(p.Client, p.Config.Fulfillment.URLs, p.Config.Fulfillment.AccountNumber)
})

// Account returns the account number requests are issued for.
func (o *Operations) Account() string {
	return o.account
}

// CreateSalesOrder submits order. The provider accepts it asynchronously.
func (o *Operations) CreateSalesOrder(ctx context.Context, order salesorder.SalesOrderRequest) (json.RawMessage, error) {
	var body json.RawMessage
	err := o.client.Call(ctx, Request{
		Method:      http.MethodPost,
		URL:         o.urls.OrderCreate,
		Body:        order,
		OrderNumber: order.OrderNumber(),
	}, ExpectStatus(http.StatusAccepted, &body))
	return body, err
}

// Acknowledge fetches the processing acknowledgement for a submission.
func (o *Operations) Acknowledge(ctx context.Context, orderNumber, submissionID string) (json.RawMessage, error) {
	var body json.RawMessage
	err := o.client.Call(ctx, Request{
		Method:      http.MethodGet,
		URL:         o.urls.Acknowledgement(o.account, orderNumber, submissionID),
		OrderNumber: orderNumber,
	}, ExpectStatus(http.StatusOK, &body))
	return body, err
}

// OrderStatus fetches the provider's current status for an order.
func (o *Operations) OrderStatus(ctx context.Context, orderNumber string) (json.RawMessage, error) {
	var body json.RawMessage
	err := o.client.Call(ctx, Request{
		Method:      http.MethodGet,
		URL:         o.urls.Status(o.account, orderNumber),
		OrderNumber: orderNumber,
	}, ExpectStatus(http.StatusOK, &body))
	return body, err
}

// ShipmentDetails fetches shipment tracking for an order.
func (o *Operations) ShipmentDetails(ctx context.Context, orderNumber string) (json.RawMessage, error) {
	var body json.RawMessage
	err := o.client.Call(ctx, Request{
		Method:      http.MethodGet,
		URL:         o.urls.Shipment(o.account, orderNumber),
		OrderNumber: orderNumber,
	}, ExpectStatus(http.StatusOK, &body))
	return body, err
}
