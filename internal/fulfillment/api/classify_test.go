package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		outcome Outcome
		kind    errorbank.Kind
		message string
	}{
		{
			name:    "unauthorized",
			outcome: Outcome{StatusCode: http.StatusUnauthorized, Body: []byte(`{"fault":"expired"}`)},
			kind:    errorbank.KindUnauthorized,
			message: "Invalid access token. Verify your credentials.",
		},
		{
			name:    "bad request with detail",
			outcome: Outcome{StatusCode: http.StatusBadRequest, Body: []byte(`{"error":{"description":"Bad","detailError":"field X"}}`)},
			kind:    errorbank.KindBadRequest,
			message: "Bad: field X",
		},
		{
			name:    "bad request without detail falls through",
			outcome: Outcome{StatusCode: http.StatusBadRequest, Body: []byte(`{"error":{"description":"Bad"}}`)},
			kind:    errorbank.KindUpstream,
			message: "fulfillment api responded 400 bad request",
		},
		{
			name: "already in system wins over acknowledgement",
			outcome: Outcome{
				StatusCode:  http.StatusOK,
				OrderNumber: "1001",
				Body: []byte(`{"CreationAcknowledge":{"Order":{"OrderSubmission":{"Error":[
					{"ErrorCode":"ABC123","ErrorDescription":"other"},
					{"ErrorCode":"YFC0001","ErrorDescription":"duplicate"}]}}}}`),
			},
			kind:    errorbank.KindAlreadyInSystem,
			message: "Order 1001 already in the fulfillment system.",
		},
		{
			name: "acknowledgement errors",
			outcome: Outcome{
				StatusCode: http.StatusOK,
				Body:       []byte(`{"CreationAcknowledge":{"Order":{"OrderSubmission":{"Error":[{"ErrorCode":"ABC123"}]}}}}`),
			},
			kind:    errorbank.KindAcknowledgement,
			message: "Acknowledgement error.",
		},
		{
			name: "acknowledgement single object",
			outcome: Outcome{
				StatusCode:  http.StatusOK,
				OrderNumber: "7",
				Body:        []byte(`{"CreationAcknowledge":{"Order":{"OrderSubmission":{"Error":{"ErrorCode":"YFC0001"}}}}}`),
			},
			kind:    errorbank.KindAlreadyInSystem,
			message: "Order 7 already in the fulfillment system.",
		},
		{
			name: "invalid field values",
			outcome: Outcome{
				StatusCode: http.StatusAccepted,
				Body:       []byte(`{"session":"Id-1","error":{"code":"919","description":"Invalid value(s) found for field(s) : Order Number"}}`),
			},
			kind:    errorbank.KindInvalidFieldValues,
			message: "Invalid value(s) found for field(s) : Order Number",
		},
		{
			name: "invalid field values numeric code",
			outcome: Outcome{
				StatusCode: http.StatusUnprocessableEntity,
				Body:       []byte(`{"error":{"code":919}}`),
			},
			kind:    errorbank.KindInvalidFieldValues,
			message: "Invalid values for some field(s). Check API response for details.",
		},
		{
			name:    "server error",
			outcome: Outcome{StatusCode: http.StatusInternalServerError, Body: []byte(`oops`)},
			kind:    errorbank.KindUpstream,
			message: "fulfillment api responded 500 internal server error",
		},
		{
			name:    "transport error",
			outcome: Outcome{Err: errors.New("connection reset by peer")},
			kind:    errorbank.KindUpstream,
			message: "fulfillment api request failed",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Classify(tc.outcome)
			require.Error(t, err)

			appErr := errorbank.From(err)
			assert.Equal(t, tc.kind, appErr.Kind())
			assert.Equal(t, tc.message, appErr.Message())
			assert.Equal(t, string(tc.outcome.Body), appErr.Response())
		})
	}
}

func TestClassifySuccess(t *testing.T) {
	cases := map[string]Outcome{
		"accepted":           {StatusCode: http.StatusAccepted, Body: []byte(`{"CreationAcknowledge":{"Order":{"OrderSubmission":{"Error":[]}}}}`)},
		"empty body":         {StatusCode: http.StatusOK},
		"non json body":      {StatusCode: http.StatusOK, Body: []byte(`ok`)},
		"other error code":   {StatusCode: http.StatusOK, Body: []byte(`{"error":{"code":"100"}}`)},
		"null ack error list": {StatusCode: http.StatusOK, Body: []byte(`{"CreationAcknowledge":{"Order":{"OrderSubmission":{"Error":null}}}}`)},
	}
	for name, outcome := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, Classify(outcome))
		})
	}
}

func TestClassifyKeepsTransportCause(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	err := Classify(Outcome{Err: cause})
	assert.ErrorIs(t, err, cause)
}
