// Package signing builds authenticated query strings for the exchange REST API.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"spotrelay/internal/errs"

	"github.com/shopspring/decimal"
)

const (
	HeaderAPIKey   = "X-MBX-APIKEY"
	ParamSignature = "signature"
	ParamTimestamp = "timestamp"
	ParamRecvWin   = "recvWindow"
)

// Param is one request parameter. Order matters: the signature covers the
// encoding exactly as the parameters are listed.
type Param struct {
	Key   string
	Value any
}

// Params is an ordered parameter list.
type Params []Param

// Add appends a parameter and returns the list for chaining.
func (p Params) Add(key string, value any) Params {
	return append(p, Param{Key: key, Value: value})
}

// Get returns the first value stored under key.
func (p Params) Get(key string) (any, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// Without returns a copy without any entry named key.
func (p Params) Without(key string) Params {
	out := make(Params, 0, len(p))
	for _, kv := range p {
		if kv.Key != key {
			out = append(out, kv)
		}
	}
	return out
}

// Encode renders the parameters as a query string in list order.
func (p Params) Encode() string {
	var b strings.Builder
	for i, kv := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(FormatValue(kv.Value)))
	}
	return b.String()
}

// FormatValue renders a primitive the way the exchange expects it on the wire.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case decimal.Decimal:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Sign returns the canonical encoding of params with an appended HMAC-SHA256
// signature keyed by secret.
func Sign(params Params, secret string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", &errs.ConfigurationError{Field: "exchange.api_secret"}
	}
	payload := params.Encode()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	sig := hex.EncodeToString(mac.Sum(nil))
	if payload == "" {
		return ParamSignature + "=" + sig, nil
	}
	return payload + "&" + ParamSignature + "=" + sig, nil
}

// Signer carries credentials for signed endpoints.
type Signer struct {
	apiKey     string
	secret     string
	recvWindow int64
	now        func() time.Time
}

// NewSigner validates credentials. With recvWindow <= 0 the signer never
// sets the parameter itself.
func NewSigner(apiKey, secret string, recvWindow time.Duration) (*Signer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &errs.ConfigurationError{Field: "exchange.api_key"}
	}
	if strings.TrimSpace(secret) == "" {
		return nil, &errs.ConfigurationError{Field: "exchange.api_secret"}
	}
	return &Signer{
		apiKey:     strings.TrimSpace(apiKey),
		secret:     secret,
		recvWindow: recvWindow.Milliseconds(),
		now:        time.Now,
	}, nil
}

// WithClock replaces the timestamp source.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	if now != nil {
		s.now = now
	}
	return s
}

// APIKey is sent as the X-MBX-APIKEY header.
func (s *Signer) APIKey() string { return s.apiKey }

// SignRequest stamps params with timestamp and signs the result. A
// configured recvWindow replaces the caller's; without one the caller's
// value is forwarded unchanged.
func (s *Signer) SignRequest(params Params) (string, error) {
	stamped := params.Without(ParamSignature).Without(ParamTimestamp)
	if s.recvWindow > 0 {
		stamped = stamped.Without(ParamRecvWin).Add(ParamRecvWin, s.recvWindow)
	}
	stamped = stamped.Add(ParamTimestamp, s.now().UnixMilli())
	return Sign(stamped, s.secret)
}
