package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Kind classifies a failed request for the view layer.
type Kind string

const (
	KindTimeout          Kind = "timeout"
	KindConnectivity     Kind = "connectivity"
	KindServer           Kind = "server"
	KindUnexpectedFormat Kind = "unexpected_format"
	KindValidation       Kind = "validation"
)

// Error is the classified failure returned by every client operation.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind, and by status when the sentinel carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Status == 0 || t.Status == e.Status
}

// Sentinels for errors.Is.
var (
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrConnectivity     = &Error{Kind: KindConnectivity}
	ErrServer           = &Error{Kind: KindServer}
	ErrUnexpectedFormat = &Error{Kind: KindUnexpectedFormat}
	ErrValidation       = &Error{Kind: KindValidation}
	ErrNotFound         = &Error{Kind: KindServer, Status: 404}
	ErrUnauthorized     = &Error{Kind: KindServer, Status: 401}

	// ErrResponseTooLarge is wrapped when a body exceeds the read limit.
	ErrResponseTooLarge = errors.New("apiclient: response too large")
)

// Validation builds a view-local validation error. It never reaches the network.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

// KindOf returns the classification of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

const (
	msgTimeout         = "Request timeout. The server took too long to respond."
	msgNotFound        = "API endpoint not found. Please check if the API server is running and configured correctly."
	msgUnavailable     = "API server is not available. Please ensure the API server is running."
	maxErrorTextLength = 200
)

func timeoutError(err error) *Error {
	return &Error{Kind: KindTimeout, Message: msgTimeout, Err: err}
}

func connectivityError(baseURL string, err error) *Error {
	target := baseURL
	if target == "" {
		target = "the API server"
	}
	return &Error{
		Kind:    KindConnectivity,
		Message: fmt.Sprintf("Unable to connect to %s. Please ensure the API server is running and accessible.", target),
		Err:     err,
	}
}

// classifyStatus turns a non-2xx response into a Server error. A JSON
// "error" field wins over any status-derived text.
func classifyStatus(status int, isJSON bool, raw []byte) *Error {
	msg := fmt.Sprintf("HTTP %d", status)
	if isJSON {
		var body struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			msg = fmt.Sprintf("Server error (%d)", status)
		} else if body.Error != "" {
			msg = body.Error
		}
		return &Error{Kind: KindServer, Status: status, Message: msg}
	}

	text := string(raw)
	switch {
	case strings.Contains(text, "<!DOCTYPE") || strings.Contains(text, "<html"):
		switch status {
		case 404:
			msg = msgNotFound
		case 502, 503:
			msg = msgUnavailable
		default:
			msg = fmt.Sprintf("Server error (%d). The API may not be available.", status)
		}
	default:
		if t := truncate(strings.TrimSpace(text), maxErrorTextLength); t != "" {
			msg = t
		}
	}
	return &Error{Kind: KindServer, Status: status, Message: msg}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
