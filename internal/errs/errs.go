// Package errs holds the error taxonomy shared by the relay, the gateway and
// the analytics services.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrSymbolUnresolved 表示没有任何报价币种组合存在成交历史，调用方应静默跳过。
var ErrSymbolUnresolved = errors.New("no quote pairing has trade history")

// ErrInvalidInput marks caller mistakes (missing symbol, negative amounts).
var ErrInvalidInput = errors.New("invalid input")

// Invalid wraps ErrInvalidInput with a formatted reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ConfigurationError reports missing or unusable credentials/settings.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	reason := strings.TrimSpace(e.Reason)
	if reason == "" {
		reason = "is required"
	}
	return fmt.Sprintf("configuration error: %s %s", e.Field, reason)
}

// InvalidFilterError reports zero or missing trading-rule metadata.
type InvalidFilterError struct {
	Symbol string
	Filter string
	Value  string
}

func (e *InvalidFilterError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("invalid filter %s=%q", e.Filter, e.Value)
	}
	return fmt.Sprintf("invalid filter %s=%q for %s", e.Filter, e.Value, e.Symbol)
}

// UpstreamError wraps a non-success response or malformed payload from the exchange.
type UpstreamError struct {
	Op     string
	Status int
	Code   int64
	Msg    string
	Err    error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	b.WriteString("upstream error")
	if e.Op != "" {
		b.WriteString(" (" + e.Op + ")")
	}
	if e.Status > 0 {
		fmt.Fprintf(&b, " status=%d", e.Status)
	}
	if e.Code != 0 {
		fmt.Fprintf(&b, " code=%d", e.Code)
	}
	if e.Msg != "" {
		b.WriteString(" msg=" + e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Binance error codes that signal load or connectivity rather than a bad request.
const (
	codeDisconnected    = -1001
	codeTooManyRequests = -1003
	codeTimeout         = -1007
)

// Transient reports whether retrying the same idempotent read may succeed.
func (e *UpstreamError) Transient() bool {
	if e == nil {
		return false
	}
	switch e.Code {
	case codeDisconnected, codeTooManyRequests, codeTimeout:
		return true
	}
	if e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError {
		return true
	}
	if e.Status == 0 && e.Code == 0 && e.Err != nil {
		return IsTransport(e.Err)
	}
	return false
}

// IsTransport reports network level failures (dial, reset, timeout).
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// IsTransient unwraps err looking for a transient UpstreamError or a transport failure.
func IsTransient(err error) bool {
	var up *UpstreamError
	if errors.As(err, &up) {
		return up.Transient()
	}
	return IsTransport(err)
}
