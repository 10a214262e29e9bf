package apihttp

import (
	"context"
	"errors"
	"net/http"

	"spotrelay/internal/errs"
	"spotrelay/internal/logger"
	"spotrelay/internal/relay"

	"github.com/gin-gonic/gin"
)

// statusFor 把错误分类映射为 HTTP 状态码。
func statusFor(err error) int {
	var (
		filterErr *errs.InvalidFilterError
		cfgErr    *errs.ConfigurationError
		upErr     *errs.UpstreamError
	)
	switch {
	case errors.Is(err, errs.ErrInvalidInput), errors.As(err, &filterErr):
		return http.StatusBadRequest
	case errors.Is(err, relay.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError
	case errors.As(err, &upErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	var upErr *errs.UpstreamError
	if errors.As(err, &upErr) {
		body["upstream"] = gin.H{"code": upErr.Code, "msg": upErr.Msg, "status": upErr.Status}
	}
	if status >= http.StatusInternalServerError {
		logger.Warnf("[api] %s %s -> %d: %v", c.Request.Method, c.Request.URL.Path, status, err)
	}
	c.JSON(status, body)
}
