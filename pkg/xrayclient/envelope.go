package xrayclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	apperrors "xui-fleet/internal/errors"
)

// maxErrorBody bounds how much of a response body ends up in error messages
const maxErrorBody = 256

// apiResponse represents the common response envelope of the panel API
type apiResponse struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Obj     json.RawMessage `json:"obj"`
}

// decodeEnvelope checks the status and the success flag and returns obj.
// An empty 2xx body is accepted and yields a nil obj.
func (c *Client) decodeEnvelope(operation string, resp *resty.Response) (json.RawMessage, error) {
	if !resp.IsSuccess() {
		return nil, c.statusError(operation, resp)
	}

	body := bytes.TrimSpace(resp.Body())
	if len(body) == 0 {
		return nil, nil
	}

	var env apiResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", operation, err)
	}
	if !env.Success {
		return nil, &apperrors.APIError{
			ServerID:  c.server.ID,
			Operation: operation,
			Status:    resp.StatusCode(),
			Message:   env.Msg,
		}
	}

	return nullToNil(env.Obj), nil
}

func (c *Client) statusError(operation string, resp *resty.Response) error {
	return &apperrors.APIError{
		ServerID:  c.server.ID,
		Operation: operation,
		Status:    resp.StatusCode(),
		Message:   truncate(string(resp.Body()), maxErrorBody),
	}
}

// extractObj tolerates the envelope shapes seen across panel versions:
// a {"obj": ...} object, or a bare array whose first object element is the
// payload. When obj is itself an array, its first object element is used.
// Anything else yields nil.
func extractObj(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}

	switch trimmed[0] {
	case '{':
		var env struct {
			Obj json.RawMessage `json:"obj"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil
		}
		obj := nullToNil(env.Obj)
		if len(obj) > 0 && obj[0] == '[' {
			return firstObject(obj)
		}
		if len(obj) > 0 && obj[0] != '{' {
			return nil
		}
		return obj
	case '[':
		return firstObject(trimmed)
	default:
		return nil
	}
}

func firstObject(array json.RawMessage) json.RawMessage {
	var items []json.RawMessage
	if err := json.Unmarshal(array, &items); err != nil || len(items) == 0 {
		return nil
	}
	first := bytes.TrimSpace(items[0])
	if len(first) == 0 || first[0] != '{' {
		return nil
	}
	return first
}

func nullToNil(raw json.RawMessage) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return raw
}

// isHTTPFailure reports whether status is a real non-2xx answer
func isHTTPFailure(status int) bool {
	return status != 0 && (status < http.StatusOK || status >= http.StatusMultipleChoices)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
