package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Additional-Code/fulfillment/internal/fulfillment/endpoint"
	"github.com/Additional-Code/fulfillment/internal/fulfillment/salesorder"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

type fakeTokens struct {
	mu          sync.Mutex
	issued      int
	invalidated []string
	current     string
}

func (f *fakeTokens) Token(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == "" {
		f.issued++
		f.current = "token-" + string(rune('0'+f.issued))
	}
	return f.current, nil
}

func (f *fakeTokens) Invalidate(_ context.Context, stale string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, stale)
	if f.current == stale {
		f.current = ""
	}
}

type scriptedServer struct {
	*httptest.Server
	calls   atomic.Int32
	headers []http.Header
	bodies  []string
	mu      sync.Mutex
}

func newScriptedServer(t *testing.T, statuses []int, body string) *scriptedServer {
	t.Helper()
	s := &scriptedServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(s.calls.Add(1))
		raw, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.headers = append(s.headers, r.Header.Clone())
		s.bodies = append(s.bodies, string(raw))
		s.mu.Unlock()

		status := statuses[len(statuses)-1]
		if n <= len(statuses) {
			status = statuses[n-1]
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func TestCallRetriesOnceAfterUnauthorized(t *testing.T) {
	srv := newScriptedServer(t, []int{http.StatusUnauthorized, http.StatusOK}, `{"ok":true}`)
	tokens := &fakeTokens{}
	client := NewClient(tokens)

	var handled int
	err := client.Call(context.Background(), Request{Method: http.MethodGet, URL: srv.URL}, func(res Response) error {
		handled = res.StatusCode
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, handled)
	assert.Equal(t, int32(2), srv.calls.Load())
	assert.Equal(t, []string{"token-1"}, tokens.invalidated)
	assert.Equal(t, "Bearer token-1", srv.headers[0].Get("Authorization"))
	assert.Equal(t, "Bearer token-2", srv.headers[1].Get("Authorization"))
}

func TestCallFailsAfterSecondUnauthorized(t *testing.T) {
	srv := newScriptedServer(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusOK}, `{"fault":"expired"}`)
	tokens := &fakeTokens{}
	client := NewClient(tokens)

	err := client.Call(context.Background(), Request{Method: http.MethodGet, URL: srv.URL}, nil)

	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindUnauthorized))
	assert.Equal(t, `{"fault":"expired"}`, errorbank.From(err).Response())
	assert.Equal(t, int32(2), srv.calls.Load())
	assert.Len(t, tokens.invalidated, 2)
}

func TestCallDoesNotRetryServerErrors(t *testing.T) {
	srv := newScriptedServer(t, []int{http.StatusInternalServerError, http.StatusOK}, `broken`)
	client := NewClient(&fakeTokens{})

	err := client.Call(context.Background(), Request{Method: http.MethodGet, URL: srv.URL}, nil)

	require.Error(t, err)
	appErr := errorbank.From(err)
	assert.Equal(t, errorbank.KindUpstream, appErr.Kind())
	assert.Equal(t, "broken", appErr.Response())
	assert.Equal(t, int32(1), srv.calls.Load())
}

func TestCallClassifiesAcknowledgementBody(t *testing.T) {
	body := `{"CreationAcknowledge":{"Order":{"OrderSubmission":{"Error":{"ErrorCode":"YFC0001"}}}}}`
	srv := newScriptedServer(t, []int{http.StatusOK}, body)
	client := NewClient(&fakeTokens{})

	handled := false
	err := client.Call(context.Background(), Request{Method: http.MethodGet, URL: srv.URL, OrderNumber: "1001"}, func(Response) error {
		handled = true
		return nil
	})

	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindAlreadyInSystem))
	assert.Equal(t, body, errorbank.From(err).Response())
	assert.False(t, handled)
}

func TestCallRecordsAttemptDuration(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	srv := newScriptedServer(t, []int{http.StatusUnauthorized, http.StatusOK}, `{}`)
	client := NewClient(&fakeTokens{}, WithMeterProvider(provider))
	require.NoError(t, client.Call(context.Background(), Request{Method: http.MethodGet, URL: srv.URL}, nil))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var count uint64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != AttemptDurationMetric {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			require.True(t, ok)
			for _, dp := range hist.DataPoints {
				count += dp.Count
			}
		}
	}
	assert.Equal(t, uint64(2), count)
}

func TestCallSendsJSONHeadersAndBody(t *testing.T) {
	srv := newScriptedServer(t, []int{http.StatusAccepted}, `{}`)
	client := NewClient(&fakeTokens{})

	err := client.Call(context.Background(), Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Body:   map[string]string{"hello": "world"},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "application/json", srv.headers[0].Get("Accept"))
	assert.Equal(t, "application/json", srv.headers[0].Get("Content-Type"))
	assert.JSONEq(t, `{"hello":"world"}`, srv.bodies[0])
}

func TestCallWrapsHandlerErrors(t *testing.T) {
	srv := newScriptedServer(t, []int{http.StatusOK}, `{"unexpected":true}`)
	client := NewClient(&fakeTokens{})

	err := client.Call(context.Background(), Request{Method: http.MethodGet, URL: srv.URL}, ExpectStatus(http.StatusAccepted, nil))

	require.Error(t, err)
	appErr := errorbank.From(err)
	assert.Equal(t, errorbank.KindUpstream, appErr.Kind())
	assert.Equal(t, `{"unexpected":true}`, appErr.Response())
}

func TestCallAppliesPerAttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	client := NewClient(&fakeTokens{}, WithTimeout(20*time.Millisecond))
	err := client.Call(context.Background(), Request{Method: http.MethodGet, URL: srv.URL}, nil)

	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindUpstream))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallPropagatesTokenFailure(t *testing.T) {
	client := NewClient(failingTokens{})

	err := client.Call(context.Background(), Request{Method: http.MethodGet, URL: "http://127.0.0.1:1"}, nil)

	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindUnauthorized))
}

type failingTokens struct{}

func (failingTokens) Token(context.Context) (string, error) {
	return "", errorbank.Unauthorized("", errorbank.WithResponse(`{"error":"invalid_client"}`))
}

func (failingTokens) Invalidate(context.Context, string) {}

func TestOperationsURLs(t *testing.T) {
	var paths []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.RequestURI())
		mu.Unlock()
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusAccepted)
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	urls := endpoint.URLSet{
		Token:                srv.URL + "/token",
		OrderCreate:          srv.URL + "/orders",
		OrderAcknowledgement: srv.URL + "/ack",
		OrderStatus:          srv.URL + "/status",
		ShipmentDetails:      srv.URL + "/shipment",
	}
	ops := NewOperations(NewClient(&fakeTokens{}), urls, "123")
	ctx := context.Background()

	order := salesorder.SalesOrderRequest{}
	order.CreateSalesOrder.Order.OrderHeader.OrderNumber = "1001"
	body, err := ops.CreateSalesOrder(ctx, order)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	_, err = ops.Acknowledge(ctx, "1001", "sub-1")
	require.NoError(t, err)
	status, err := ops.OrderStatus(ctx, "1001")
	require.NoError(t, err)
	assert.True(t, json.Valid(status))
	_, err = ops.ShipmentDetails(ctx, "1001")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"POST /orders",
		"GET /ack/123/1001/sub-1",
		"GET /status/123?orderNumber=1001",
		"GET /shipment/123?orderNumber=1001",
	}, paths)
}
