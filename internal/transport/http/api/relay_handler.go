package apihttp

import (
	"io"
	"net/http"
	"strings"

	"spotrelay/internal/relay"

	"github.com/gin-gonic/gin"
)

const maxFormBody = 64 << 10

type relayHandler struct {
	relay Relay
}

// handle 透传到交易所：本地不做鉴权，签名由 relay 按路径补齐，
// 上游非 2xx 响应原样回写（状态码与报文不变）。
func (h *relayHandler) handle(c *gin.Context) {
	params, err := relay.ParamsFromQuery(c.Request.URL.RawQuery)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if isForm(c.Request) {
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxFormBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		body, err := relay.ParamsFromQuery(string(raw))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		params = append(params, body...)
	}

	resp, err := h.relay.Do(c.Request.Context(), relay.Request{
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		Params: params,
	})
	if resp == nil {
		writeError(c, err)
		return
	}
	for key, values := range resp.Header {
		if strings.HasPrefix(strings.ToLower(key), "x-mbx-") || strings.EqualFold(key, "Retry-After") {
			for _, v := range values {
				c.Writer.Header().Add(key, v)
			}
		}
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.Status, contentType, resp.Body)
}

func isForm(r *http.Request) bool {
	if r.Body == nil || r.Method == http.MethodGet {
		return false
	}
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
}
