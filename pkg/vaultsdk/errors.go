package vaultsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	ErrorResponse
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("vaultgate: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("vaultgate: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsLocked reports whether the withdrawal passcode was locked out (423),
// either before the request or by it.
func (e *APIError) IsLocked() bool {
	return e.StatusCode == http.StatusLocked || (e.Locked != nil && *e.Locked)
}

// RemainingAttempts returns attempts_remaining, or -1 when absent.
func (e *APIError) RemainingAttempts() int {
	if e.AttemptsRemaining == nil {
		return -1
	}
	return *e.AttemptsRemaining
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// HasStatus reports whether err is an *APIError with the given status code.
func HasStatus(err error, code int) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.StatusCode == code
}

// parseErrorResponse converts a failed response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, &apiErr.ErrorResponse); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}
