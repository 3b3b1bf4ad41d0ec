package apimodel

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ErrorDetail is one validation failure
type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ErrorBody covers the error layouts the backend produces:
//
//	{ "message": "..." }
//	{ "error": { "message": "..." } }
//	{ "error": { "details": [ { "message": "..." } ] } }
//	{ "error": "..." }
type ErrorBody struct {
	Message string          `json:"message,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
	Details []ErrorDetail   `json:"details,omitempty"`
}

type nestedError struct {
	Message string        `json:"message,omitempty"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ParseErrorBody decodes an error body. ok is false when body is not a JSON object.
func ParseErrorBody(body []byte) (ErrorBody, bool) {
	var b ErrorBody
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ErrorBody{}, false
	}
	if err := json.Unmarshal(trimmed, &b); err != nil {
		return ErrorBody{}, false
	}
	return b, true
}

// Text returns the most specific human readable message in the body: joined
// validation details first, then error.message, then message. Empty when none.
func (b ErrorBody) Text() string {
	nested, errString := b.nested()
	details := nested.Details
	if len(details) == 0 {
		details = b.Details
	}
	if msg := joinDetails(details); msg != "" {
		return msg
	}
	if nested.Message != "" {
		return nested.Message
	}
	if b.Message != "" {
		return b.Message
	}
	return errString
}

// AllDetails returns the validation details wherever they appear
func (b ErrorBody) AllDetails() []ErrorDetail {
	nested, _ := b.nested()
	if len(nested.Details) > 0 {
		return nested.Details
	}
	return b.Details
}

func (b ErrorBody) nested() (nestedError, string) {
	var nested nestedError
	raw := bytes.TrimSpace(b.Error)
	if len(raw) == 0 {
		return nested, ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return nested, s
		}
		return nested, ""
	}
	_ = json.Unmarshal(raw, &nested)
	return nested, ""
}

func joinDetails(details []ErrorDetail) string {
	msgs := make([]string, 0, len(details))
	for _, d := range details {
		if m := strings.TrimSpace(d.Message); m != "" {
			msgs = append(msgs, m)
		}
	}
	return strings.Join(msgs, "; ")
}
