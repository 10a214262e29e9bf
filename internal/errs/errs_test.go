package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpstreamError_Transient(t *testing.T) {
	cases := []struct {
		name string
		err  *UpstreamError
		want bool
	}{
		{"rate limited code", &UpstreamError{Code: -1003}, true},
		{"server error", &UpstreamError{Status: http.StatusBadGateway}, true},
		{"too many requests", &UpstreamError{Status: http.StatusTooManyRequests}, true},
		{"invalid symbol", &UpstreamError{Status: http.StatusBadRequest, Code: -1121, Msg: "Invalid symbol."}, false},
		{"deadline", &UpstreamError{Err: context.DeadlineExceeded}, true},
		{"canceled", &UpstreamError{Err: context.Canceled}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Transient())
		})
	}
}

func TestIsTransient_Wrapped(t *testing.T) {
	err := fmt.Errorf("fetch trades: %w", &UpstreamError{Op: "myTrades", Code: -1003})
	assert.True(t, IsTransient(err))
	assert.False(t, IsTransient(errors.New("boom")))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "configuration error: exchange.api_secret is required", (&ConfigurationError{Field: "exchange.api_secret"}).Error())
	assert.Equal(t, `invalid filter stepSize="0" for BTCUSDT`, (&InvalidFilterError{Symbol: "BTCUSDT", Filter: "stepSize", Value: "0"}).Error())
	up := &UpstreamError{Op: "account", Status: 400, Code: -2014, Msg: "API-key format invalid."}
	assert.Equal(t, "upstream error (account) status=400 code=-2014 msg=API-key format invalid.", up.Error())
}

func TestInvalid(t *testing.T) {
	err := Invalid("quantity %s must be positive", "-1")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "invalid input: quantity -1 must be positive", err.Error())
}
