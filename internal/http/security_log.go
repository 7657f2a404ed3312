package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"librarium/internal/audit"
	"librarium/internal/logger"
)

// suspiciousPatterns are request fragments that usually mean someone is
// probing for XSS, SQL injection or path traversal. Matches are logged, not
// blocked.
var suspiciousPatterns = []string{
	"script",
	"javascript:",
	"<iframe",
	"eval(",
	"document.cookie",
	"union select",
	"drop table",
	"../",
	"..\\",
}

// SecurityLog flags suspicious request patterns on the way in and records
// forbidden or failing responses on the way out, both as security audit
// events.
func SecurityLog(auditor *audit.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawQuery := c.Request.URL.RawQuery
		if unescaped, err := url.QueryUnescape(rawQuery); err == nil {
			// Encoded payloads like ..%2F only reveal themselves once decoded.
			rawQuery = unescaped
		}
		probe := strings.ToLower(c.Request.URL.Path + "?" + rawQuery)
		for _, pattern := range suspiciousPatterns {
			if strings.Contains(probe, pattern) {
				logger.Get().Warn().
					Str("pattern", pattern).
					Str("client_ip", c.ClientIP()).
					Str("path", c.Request.URL.Path).
					Msg("suspicious request pattern")
				if auditor != nil {
					auditor.LogSecurity(GetUserID(c), "suspicious_request",
						"pattern "+pattern+" in "+c.Request.URL.Path,
						c.ClientIP(), c.Request.UserAgent())
				}
				break
			}
		}

		c.Next()

		status := c.Writer.Status()
		switch {
		case status == http.StatusForbidden:
			logger.Get().Warn().
				Str("client_ip", c.ClientIP()).
				Str("path", c.Request.URL.Path).
				Msg("forbidden response")
			if auditor != nil {
				auditor.LogSecurity(GetUserID(c), "forbidden",
					"403 for "+c.Request.URL.Path,
					c.ClientIP(), c.Request.UserAgent())
			}
		case status >= 500:
			if auditor != nil {
				auditor.LogSecurity(GetUserID(c), "server_error",
					"status "+strconv.Itoa(status)+" for "+c.Request.URL.Path,
					c.ClientIP(), c.Request.UserAgent())
			}
		}
	}
}
