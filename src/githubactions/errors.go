package githubactions

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError represents a non-2xx response from the GitHub REST API.
type APIError struct {
	StatusCode int
	Message    string
}

func (err *APIError) Error() string {
	return fmt.Sprintf("GitHub API error %d: %s", err.StatusCode, err.Message)
}

// IsNotFound reports whether err is a GitHub API 404 Not Found response.
func IsNotFound(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == 404
}

// IsUnauthorized reports whether err is a 401 response, i.e. a bad token.
func IsUnauthorized(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == 401
}

// IsRateLimited reports whether err is a 429, or a 403 whose message names
// the rate limit (GitHub uses both for exhausted quotas).
func IsRateLimited(err error) bool {
	var apiError *APIError
	if !errors.As(err, &apiError) {
		return false
	}
	switch apiError.StatusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusForbidden:
		return strings.Contains(strings.ToLower(apiError.Message), "rate limit")
	}
	return false
}

// parseAPIError builds an APIError from a status code and response body.
// GitHub bodies are JSON with a "message" field; anything else is kept verbatim.
func parseAPIError(statusCode int, body []byte) *APIError {
	apiError := &APIError{StatusCode: statusCode}

	var wireError struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Message != "" {
		apiError.Message = wireError.Message
	} else {
		apiError.Message = string(body)
	}
	return apiError
}
