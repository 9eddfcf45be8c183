package resilience

import (
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
	"syscall"
)

// TransientError marks an error as safe to retry and carries the HTTP
// status that produced it, when one exists.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient. statusCode may be zero when
// the failure was not an HTTP response.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// statusRe matches the "returned status NNN" form the board and geocoding
// clients embed in their error messages.
var statusRe = regexp.MustCompile(`returned status (\d{3})`)

// transientFragments are message substrings from wrapped transport errors
// that no typed check catches.
var transientFragments = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"transport connection broken",
	"rate_limited", // Notion API 429 error code
}

// IsTransient reports whether err is worth retrying: an explicit
// TransientError anywhere in the chain, a network-level timeout or
// connection failure, or a message carrying a retryable HTTP status.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	return transientMessage(strings.ToLower(err.Error()))
}

// transientMessage applies the string heuristics for transport errors
// that arrive flattened into text by error wrapping.
func transientMessage(msg string) bool {
	// The Trello and Nominatim clients report non-2xx responses as
	// "returned status NNN"; the numeric code has to be recovered from
	// the text.
	if m := statusRe.FindStringSubmatch(msg); m != nil {
		if code, err := strconv.Atoi(m[1]); err == nil && IsTransientHTTPStatus(code) {
			return true
		}
	}

	for _, frag := range transientFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether an HTTP status warrants a retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	}
	return false
}
