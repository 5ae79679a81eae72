package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error  ErrorDetail `json:"error"`
	Status int         `json:"status"`
	Path   string      `json:"path,omitempty"`
	Method string      `json:"method,omitempty"`
}

// ErrorDetail contains detailed error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HTTPError is an error carrying the HTTP status it should be rendered with.
// Steps return it to have DefaultErrorHandler answer with that status.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// NewHTTPError creates an HTTPError
func NewHTTPError(status int, code, message string) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message}
}

// Error implements error
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %s: %v", e.Status, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap returns the wrapped cause
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// Wrap returns a copy of e wrapping err
func (e *HTTPError) Wrap(err error) *HTTPError {
	cp := *e
	cp.Err = err
	return &cp
}

// DefaultErrorHandler renders err as a JSON error response. *HTTPError values
// keep their status; anything else is a 500.
func DefaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{
		Error: ErrorDetail{
			Code:    "INTERNAL_SERVER_ERROR",
			Message: "An internal server error occurred",
		},
		Status: http.StatusInternalServerError,
		Path:   r.URL.Path,
		Method: r.Method,
	}

	var he *HTTPError
	if errors.As(err, &he) {
		resp.Status = he.Status
		resp.Error.Code = he.Code
		resp.Error.Message = he.Message
	}

	writeJSONError(w, resp.Status, resp)
}

// MethodNotAllowedHandler returns a handler for 405 Method Not Allowed errors
func MethodNotAllowedHandler(allowed []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := ErrorResponse{
			Error: ErrorDetail{
				Code:    "METHOD_NOT_ALLOWED",
				Message: fmt.Sprintf("Method %s is not allowed for this resource", r.Method),
				Details: map[string]interface{}{
					"allowed_methods": allowed,
				},
			},
			Status: http.StatusMethodNotAllowed,
			Path:   r.URL.Path,
			Method: r.Method,
		}
		writeJSONError(w, http.StatusMethodNotAllowed, resp)
	}
}

// WriteError writes an error response
func WriteError(w http.ResponseWriter, status int, code, message string) {
	resp := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
		Status: status,
	}
	writeJSONError(w, status, resp)
}

// WriteJSON writes v as a JSON response
func WriteJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, status int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp) // Error is logged elsewhere
}
