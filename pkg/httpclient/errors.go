package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// parseUpstreamBody extracts a code and message from the error body shapes
// the e-store API is known to return: a bare {"message": ...} or
// {"error": ...}, an exception-style {"code": ..., "message": ...}, or the
// enveloped {"error": {"code", "message"}}.
func parseUpstreamBody(body []byte) (code, message string) {
	var raw struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
		Code    string          `json:"code"`
	}
	if json.Unmarshal(body, &raw) != nil {
		return "", strings.TrimSpace(string(body))
	}

	code, message = raw.Code, raw.Message

	if len(raw.Error) > 0 {
		var nested struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		var plain string
		switch {
		case json.Unmarshal(raw.Error, &nested) == nil && (nested.Code != "" || nested.Message != ""):
			if code == "" {
				code = nested.Code
			}
			if message == "" {
				message = nested.Message
			}
		case json.Unmarshal(raw.Error, &plain) == nil && message == "":
			message = plain
		}
	}

	return code, message
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into the application error taxonomy, preserving any server-supplied code
// and message. The response body is fully consumed and closed.
//
// The caller should only invoke this when resp.StatusCode indicates an error.
func ParseResponseError(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		return apperrors.Server(fmt.Sprintf("status %d (failed to read body: %v)", resp.StatusCode, err))
	}

	return MapBodyError(resp.StatusCode, body)
}

// MapBodyError translates an already-read non-2xx response body into the
// application error taxonomy.
func MapBodyError(status int, body []byte) error {
	code, message := parseUpstreamBody(body)
	return MapStatusError(status, code, message)
}

// MapTransportError translates an error returned by Client.Do or
// BreakerClient.Do into the taxonomy: 5xx failures surfaced by the breaker
// keep their server-error identity, everything else is a network failure
// where no usable response was received.
func MapTransportError(err error) error {
	var statusErr *ServerStatusError
	if errors.As(err, &statusErr) {
		return MapBodyError(statusErr.Status, statusErr.Body)
	}
	return apperrors.Network(err)
}

// MapStatusError translates an upstream HTTP status plus server-supplied code
// and message into an AppError.
func MapStatusError(status int, code, message string) error {
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", status)
	}

	switch {
	case status == http.StatusBadRequest:
		switch {
		case isCodeMismatch(code, message):
			return apperrors.InvalidCode(message)
		case isCodeExpired(code, message):
			return apperrors.ExpiredCode(message)
		default:
			return apperrors.Validation(message)
		}
	case status == http.StatusUnauthorized:
		return apperrors.Authentication(message)
	case status == http.StatusForbidden:
		return apperrors.Authorization(message)
	case status == http.StatusNotFound:
		return apperrors.NotFound(message)
	case status == http.StatusConflict:
		return apperrors.Conflict(message)
	case status == http.StatusTooManyRequests:
		return apperrors.RateLimited(message)
	case status >= 500:
		return apperrors.Server(message)
	default:
		return &apperrors.AppError{Code: nonEmptyCode(code), Message: message, Status: status}
	}
}

func nonEmptyCode(code string) string {
	if code == "" {
		return "UPSTREAM_ERROR"
	}
	return code
}

// The identity backend reports verification-code failures as Cognito-style
// exception names; older variants used bare codes.
func isCodeMismatch(code, message string) bool {
	return code == "CodeMismatchException" || code == "INVALID_CODE" ||
		strings.Contains(strings.ToLower(message), "invalid verification code")
}

func isCodeExpired(code, message string) bool {
	return code == "ExpiredCodeException" || code == "EXPIRED_CODE" ||
		strings.Contains(strings.ToLower(message), "verification code has expired")
}
