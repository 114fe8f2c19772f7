package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the remote API.
type APIError struct {
	Status   int
	Method   string
	Endpoint string
	Code     string
	Message  string
	Details  map[string][]string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Endpoint, e.Status, http.StatusText(e.Status))
}

// apiErrorPayload is the error envelope the API returns:
// {"success": false, "error": {"code": "...", "message": "...", "details": {...}}}
type apiErrorPayload struct {
	Error struct {
		Code    string              `json:"code"`
		Message string              `json:"message"`
		Details map[string][]string `json:"details,omitempty"`
	} `json:"error"`
}

// NewAPIError builds an APIError, pulling code/message/details out of body when it is a
// well formed error envelope.
func NewAPIError(method, endpoint string, status int, body []byte) *APIError {
	apiErr := &APIError{
		Status:   status,
		Method:   method,
		Endpoint: endpoint,
	}
	var payload apiErrorPayload
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		apiErr.Code = payload.Error.Code
		apiErr.Message = payload.Error.Message
		apiErr.Details = payload.Error.Details
	}
	return apiErr
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
