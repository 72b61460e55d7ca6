package errorbank

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestKindMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		status int
		code   codes.Code
	}{
		{name: "bad request", err: BadRequest("bad"), status: http.StatusBadRequest, code: codes.InvalidArgument},
		{name: "unauthorized", err: Unauthorized(""), status: http.StatusBadGateway, code: codes.Unauthenticated},
		{name: "already in system", err: AlreadyInSystem("1001", "{}"), status: http.StatusConflict, code: codes.AlreadyExists},
		{name: "acknowledgement", err: Acknowledgement("{}"), status: http.StatusBadGateway, code: codes.FailedPrecondition},
		{name: "invalid fields", err: InvalidFieldValues("", "{}"), status: http.StatusUnprocessableEntity, code: codes.InvalidArgument},
		{name: "upstream", err: Upstream("boom", ""), status: http.StatusBadGateway, code: codes.Unavailable},
		{name: "not found", err: NotFound("missing"), status: http.StatusNotFound, code: codes.NotFound},
		{name: "internal", err: Internal("oops"), status: http.StatusInternalServerError, code: codes.Internal},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.status, test.err.StatusCode())
			assert.Equal(t, test.code, test.err.GRPCCode())
		})
	}
}

func TestProviderConstructorsKeepResponse(t *testing.T) {
	body := `{"error":{"code":"919"}}`

	assert.Equal(t, body, InvalidFieldValues("x", body).Response())
	assert.Equal(t, body, Acknowledgement(body).Response())
	assert.Equal(t, body, Upstream("x", body).Response())

	already := AlreadyInSystem("1001", body)
	assert.Equal(t, body, already.Response())
	assert.Equal(t, "Order 1001 already in the fulfillment system.", already.Message())
	assert.Equal(t, "1001", already.Details()["order_number"])
}

func TestDefaultMessages(t *testing.T) {
	assert.Equal(t, "Invalid access token. Verify your credentials.", Unauthorized("").Message())
	assert.Equal(t, "Invalid values for some field(s). Check API response for details.", InvalidFieldValues("", "").Message())
	assert.Equal(t, "not_found", New(KindNotFound, "").Message())
}

func TestFromAndIsKind(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	wrapped := fmt.Errorf("submit: %w", Upstream("request failed", "", WithCause(cause)))

	appErr := From(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, KindUpstream, appErr.Kind())
	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, IsKind(wrapped, KindUpstream))
	assert.False(t, IsKind(wrapped, KindUnauthorized))
	assert.False(t, IsKind(cause, KindUpstream))

	assert.Equal(t, KindInternal, From(cause).Kind())
	assert.Nil(t, From(nil))
}

func TestNilAppError(t *testing.T) {
	var appErr *AppError
	assert.Equal(t, "<nil>", appErr.Error())
	assert.Equal(t, KindInternal, appErr.Kind())
	assert.Equal(t, "", appErr.Response())
	assert.Equal(t, http.StatusInternalServerError, appErr.StatusCode())
}
