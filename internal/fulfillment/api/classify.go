package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

const (
	// CodeAlreadyInSystem marks an acknowledgement entry for a duplicate order.
	CodeAlreadyInSystem = "YFC0001"
	// CodeInvalidFieldValues marks a response rejecting individual fields.
	CodeInvalidFieldValues = "919"
)

// Outcome is everything known about one finished HTTP exchange.
type Outcome struct {
	StatusCode  int
	Body        []byte
	Err         error
	OrderNumber string
}

type errorEnvelope struct {
	Error *struct {
		Code        flexString `json:"code"`
		Description *string    `json:"description"`
		DetailError *string    `json:"detailError"`
	} `json:"error"`
}

type ackEnvelope struct {
	CreationAcknowledge struct {
		Order struct {
			OrderSubmission struct {
				Error json.RawMessage `json:"Error"`
			} `json:"OrderSubmission"`
		} `json:"Order"`
	} `json:"CreationAcknowledge"`
}

type ackEntry struct {
	ErrorCode flexString `json:"ErrorCode"`
}

// flexString decodes a JSON string or number as text.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// Classify maps an outcome onto the error taxonomy. It returns nil when the
// exchange succeeded and carries no embedded errors.
func Classify(o Outcome) error {
	body := string(o.Body)

	if o.StatusCode == http.StatusUnauthorized {
		return errorbank.Unauthorized("", errorbank.WithResponse(body))
	}

	if o.Err != nil {
		return errorbank.Upstream("fulfillment api request failed", body, errorbank.WithCause(o.Err))
	}

	var envelope errorEnvelope
	decoded := json.Unmarshal(o.Body, &envelope) == nil && envelope.Error != nil

	if o.StatusCode == http.StatusBadRequest && decoded &&
		envelope.Error.Description != nil && envelope.Error.DetailError != nil {
		message := fmt.Sprintf("%s: %s", *envelope.Error.Description, *envelope.Error.DetailError)
		return errorbank.BadRequest(message, errorbank.WithResponse(body))
	}

	if success(o.StatusCode) {
		if codes, ok := ackErrorCodes(o.Body); ok {
			for _, code := range codes {
				if code == CodeAlreadyInSystem {
					return errorbank.AlreadyInSystem(o.OrderNumber, body)
				}
			}
			return errorbank.Acknowledgement(body)
		}
	}

	if decoded && string(envelope.Error.Code) == CodeInvalidFieldValues {
		description := ""
		if envelope.Error.Description != nil {
			description = *envelope.Error.Description
		}
		return errorbank.InvalidFieldValues(description, body)
	}

	if !success(o.StatusCode) {
		return errorbank.Upstream(
			fmt.Sprintf("fulfillment api responded %d %s", o.StatusCode, strings.ToLower(http.StatusText(o.StatusCode))),
			body,
			errorbank.WithDetail("status", o.StatusCode),
		)
	}

	return nil
}

// ackErrorCodes extracts the codes of a non-empty acknowledgement error list.
// The list may also arrive as a single object.
func ackErrorCodes(body []byte) ([]string, bool) {
	var envelope ackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false
	}
	raw := bytes.TrimSpace(envelope.CreationAcknowledge.Order.OrderSubmission.Error)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}

	var entries []ackEntry
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, false
		}
	case '{':
		var entry ackEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, false
		}
		entries = append(entries, entry)
	default:
		return nil, false
	}
	if len(entries) == 0 {
		return nil, false
	}

	codes := make([]string, 0, len(entries))
	for _, entry := range entries {
		codes = append(codes, string(entry.ErrorCode))
	}
	return codes, true
}

func success(status int) bool {
	return status >= 200 && status < 300
}

func statusLabel(status int) string {
	return strconv.Itoa(status)
}
