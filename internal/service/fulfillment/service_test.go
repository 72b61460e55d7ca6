package fulfillment

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/fulfillment/internal/cache"
	"github.com/Additional-Code/fulfillment/internal/config"
	"github.com/Additional-Code/fulfillment/internal/database"
	"github.com/Additional-Code/fulfillment/internal/entity"
	"github.com/Additional-Code/fulfillment/internal/fulfillment/salesorder"
	"github.com/Additional-Code/fulfillment/internal/messaging"
	repo "github.com/Additional-Code/fulfillment/internal/repository/submission"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

type fakeProvider struct {
	createBody json.RawMessage
	createErr  error
	ackBody    json.RawMessage
	ackErr     error
	submitted  []salesorder.SalesOrderRequest
	acked      []string
}

func (f *fakeProvider) Account() string { return "123" }

func (f *fakeProvider) CreateSalesOrder(_ context.Context, order salesorder.SalesOrderRequest) (json.RawMessage, error) {
	f.submitted = append(f.submitted, order)
	return f.createBody, f.createErr
}

func (f *fakeProvider) Acknowledge(_ context.Context, orderNumber, submissionID string) (json.RawMessage, error) {
	f.acked = append(f.acked, orderNumber+"/"+submissionID)
	return f.ackBody, f.ackErr
}

func (f *fakeProvider) OrderStatus(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`{"status":"SHIPPED"}`), nil
}

func (f *fakeProvider) ShipmentDetails(context.Context, string) (json.RawMessage, error) {
	return nil, errorbank.Upstream("fulfillment api responded 500 internal server error", "down")
}

type published struct {
	key     string
	value   []byte
	headers map[string]string
}

type recordingClient struct {
	mu   sync.Mutex
	sent []published
}

func (c *recordingClient) Publish(_ context.Context, key, value []byte, headers map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, published{key: string(key), value: value, headers: headers})
	return nil
}

func (c *recordingClient) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (c *recordingClient) Topic() string { return "fulfillment.orders.submitted" }

type view struct {
	number     string
	submission string
	items      []salesorder.Item
}

func (v view) MessageDateTime() string             { return "2024-03-01T10:00:00Z" }
func (v view) SubmissionID() string {
	if v.submission != "" {
		return v.submission
	}
	return "sub-" + v.number
}

func (v view) OrganizationID() string              { return "" }
func (v view) OrderNumber() string                 { return v.number }
func (v view) CreatedAt() string                   { return "2024-03-01T09:00:00Z" }
func (v view) ShippingServiceID() string           { return "GND" }
func (v view) Currency() string                    { return "usd" }
func (v view) Total() decimal.Decimal              { return decimal.NewFromInt(10) }
func (v view) Subtotal() decimal.Decimal           { return decimal.NewFromInt(10) }
func (v view) TotalTax() decimal.Decimal           { return decimal.Zero }
func (v view) ShippingCharge() decimal.Decimal     { return decimal.Zero }
func (v view) BillingAddress() salesorder.Address  { return salesorder.Address{Line1: "1 Main St"} }
func (v view) ShippingAddress() salesorder.Address { return salesorder.Address{Line1: "1 Main St"} }
func (v view) Items() []salesorder.Item            { return v.items }
func (v view) TaxDetails() []salesorder.Tax        { return nil }

func newView(number string) view {
	return view{number: number, items: []salesorder.Item{{SKU: "SKU0", Title: "Product #0", Quantity: 5, Price: decimal.NewFromInt(100)}}}
}

type fixture struct {
	svc      *Service
	provider *fakeProvider
	client   *recordingClient
	repo     *repo.Repository
	conns    *database.Connections
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conns, err := database.Open(config.Database{
		Driver:       "sqlite",
		WriterDSN:    "file:" + filepath.Join(t.TempDir(), "svc.db"),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })
	_, err = conns.Writer.NewCreateTable().Model((*entity.Submission)(nil)).Exec(context.Background())
	require.NoError(t, err)

	cfg := config.Config{}
	cfg.Cache.DefaultTTL = time.Minute
	cfg.Messaging.Enabled = true
	cfg.Messaging.Kafka.Topic = "fulfillment.orders.submitted"

	f := &fixture{
		provider: &fakeProvider{createBody: json.RawMessage(`{"accepted":true}`)},
		client:   &recordingClient{},
		repo:     repo.NewRepository(conns),
		conns:    conns,
	}
	f.svc = NewService(Params{
		Provider:   f.provider,
		Repository: f.repo,
		Cache:      cache.NewMemoryStore(time.Minute),
		Config:     cfg,
		Logger:     zap.NewNop(),
		Publisher:  f.client,
	})
	return f
}

func TestSubmitOrderRecordsAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	submission, err := f.svc.SubmitOrder(ctx, newView("1001"))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSubmitted, submission.Status)
	assert.Equal(t, `{"accepted":true}`, submission.Response)

	require.Len(t, f.provider.submitted, 1)
	sent := f.provider.submitted[0].CreateSalesOrder
	assert.Equal(t, "123", sent.AccountNumber)
	assert.Equal(t, "USD", sent.Order.OrderHeader.Charges.OrderCurrency)

	require.Len(t, f.client.sent, 1)
	assert.Equal(t, "1001", f.client.sent[0].key)
	assert.Equal(t, EventOrderSubmitted, f.client.sent[0].headers[messaging.HeaderEventType])
	var event SubmittedEvent
	require.NoError(t, json.Unmarshal(f.client.sent[0].value, &event))
	assert.Equal(t, "sub-1001", event.SubmissionID)
	assert.NotEmpty(t, event.EventID)

	stored, err := f.svc.Get(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, submission.ID, stored.ID)
}

func TestSubmitOrderRejectsEmptyOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SubmitOrder(context.Background(), view{number: "1002"})
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))
	assert.Empty(t, f.provider.submitted)
}

func TestSubmitOrderRecordsProviderRejection(t *testing.T) {
	f := newFixture(t)
	f.provider.createErr = errorbank.InvalidFieldValues("Invalid value(s) found for field(s) : Order Number", `{"error":{"code":"919"}}`)
	ctx := context.Background()

	submission, err := f.svc.SubmitOrder(ctx, newView("1003"))
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidFieldValues))
	assert.Equal(t, entity.StatusFailed, submission.Status)
	assert.Equal(t, `{"error":{"code":"919"}}`, submission.Response)
	assert.Empty(t, f.client.sent)

	stored, err := f.repo.Latest(ctx, "1003")
	require.NoError(t, err)
	assert.Equal(t, "invalid_field_values", stored.ErrorKind)
}

func TestAcknowledgeOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		ackErr  error
		status  string
		wantErr errorbank.Kind
	}{
		{name: "acknowledged", status: entity.StatusAcknowledged},
		{
			name:    "already in system",
			ackErr:  errorbank.AlreadyInSystem("1004", `{"CreationAcknowledge":{}}`),
			status:  entity.StatusAlreadyInSystem,
			wantErr: errorbank.KindAlreadyInSystem,
		},
		{
			name:    "acknowledgement errors",
			ackErr:  errorbank.Acknowledgement(`{"CreationAcknowledge":{}}`),
			status:  entity.StatusFailed,
			wantErr: errorbank.KindAcknowledgement,
		},
		{
			name:    "transient leaves status",
			ackErr:  errorbank.Upstream("fulfillment api responded 503 service unavailable", ""),
			status:  entity.StatusSubmitted,
			wantErr: errorbank.KindUpstream,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			_, err := f.svc.SubmitOrder(ctx, newView("1004"))
			require.NoError(t, err)

			f.provider.ackBody = json.RawMessage(`{"CreationAcknowledge":{"Order":{}}}`)
			f.provider.ackErr = tc.ackErr

			_, err = f.svc.Acknowledge(ctx, "1004", "")
			if tc.wantErr == "" {
				require.NoError(t, err)
			} else {
				assert.True(t, errorbank.IsKind(err, tc.wantErr))
			}
			assert.Equal(t, []string{"1004/sub-1004"}, f.provider.acked)

			stored, err := f.repo.Find(ctx, "1004", "sub-1004")
			require.NoError(t, err)
			assert.Equal(t, tc.status, stored.Status)
		})
	}
}

func TestSubmitOrderSkipsCacheWhenRecordFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.conns.Writer.NewDropTable().Model((*entity.Submission)(nil)).Exec(ctx)
	require.NoError(t, err)
	f.provider.createErr = errorbank.Upstream("fulfillment api responded 503 service unavailable", "")

	submission, err := f.svc.SubmitOrder(ctx, newView("1005"))
	assert.True(t, errorbank.IsKind(err, errorbank.KindUpstream))
	require.NotNil(t, submission)
	assert.Equal(t, entity.StatusFailed, submission.Status)

	_, err = f.svc.cache.Get(ctx, f.svc.cacheKey("1005"))
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	_, err = f.svc.Get(ctx, "1005")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInternal))
}

func TestAcknowledgeOlderSubmissionKeepsLatest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	older := newView("1006")
	older.submission = "sub-old"
	_, err := f.svc.SubmitOrder(ctx, older)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	newer := newView("1006")
	newer.submission = "sub-new"
	_, err = f.svc.SubmitOrder(ctx, newer)
	require.NoError(t, err)

	acked, err := f.svc.Acknowledge(ctx, "1006", "sub-old")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAcknowledged, acked.Status)

	latest, err := f.svc.Get(ctx, "1006")
	require.NoError(t, err)
	assert.Equal(t, "sub-new", latest.SubmissionID)
	assert.Equal(t, entity.StatusSubmitted, latest.Status)
}

func TestListByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitOrder(ctx, newView("1007"))
	require.NoError(t, err)
	f.provider.createErr = errorbank.InvalidFieldValues("Invalid value(s) found for field(s) : Order Number", "")
	_, err = f.svc.SubmitOrder(ctx, newView("1008"))
	require.Error(t, err)

	submitted, err := f.svc.List(ctx, entity.StatusSubmitted, 10)
	require.NoError(t, err)
	require.Len(t, submitted, 1)
	assert.Equal(t, "1007", submitted[0].OrderNumber)

	failed, err := f.svc.List(ctx, entity.StatusFailed, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "1008", failed[0].OrderNumber)

	_, err = f.svc.List(ctx, "shipped", 10)
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))
}

func TestAcknowledgeUnknownSubmission(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Acknowledge(context.Background(), "404", "nope")
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
	assert.Empty(t, f.provider.acked)
}

func TestGetMissing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Get(context.Background(), "missing")
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func TestPassThroughQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	status, err := f.svc.OrderStatus(ctx, "1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"SHIPPED"}`, string(status))

	_, err = f.svc.ShipmentDetails(ctx, "1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindUpstream))
}

func TestTransient(t *testing.T) {
	assert.True(t, Transient(errorbank.Upstream("x", "")))
	assert.True(t, Transient(errorbank.Unauthorized("")))
	assert.False(t, Transient(errorbank.AlreadyInSystem("1", "")))
	assert.False(t, Transient(errorbank.InvalidFieldValues("", "")))
}
