package auth

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// noStorePrefixes lists path prefixes whose responses must never be cached:
// everything that carries credentials, tokens or administrative data.
var noStorePrefixes = []string{
	"/login",
	"/register",
	"/setup",
	"/api/auth",
	"/api/admin",
}

// SecurityHeadersMiddleware adds hardening headers to all responses.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Prevent clickjacking
		c.Header("X-Frame-Options", "DENY")

		// Prevent MIME type sniffing
		c.Header("X-Content-Type-Options", "nosniff")

		// Enable XSS filter in browsers (legacy, but still useful)
		c.Header("X-XSS-Protection", "1; mode=block")

		// Referrer policy - don't leak URLs to external sites
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Build form-action with explicit host to handle reverse proxy scenarios
		formAction := "'self'"
		if host := c.Request.Host; host != "" {
			formAction = "'self' https://" + host
		}

		// Content Security Policy - the API serves JSON and a handful of
		// plain auth pages, so everything stays on 'self'.
		c.Header("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self'; "+
				"style-src 'self' 'unsafe-inline'; "+
				"img-src 'self' data:; "+
				"font-src 'self'; "+
				"connect-src 'self'; "+
				"frame-ancestors 'none'; "+
				"form-action "+formAction)

		// Permissions Policy - disable unnecessary browser features
		c.Header("Permissions-Policy",
			"accelerometer=(), "+
				"camera=(), "+
				"geolocation=(), "+
				"gyroscope=(), "+
				"magnetometer=(), "+
				"microphone=(), "+
				"payment=(), "+
				"usb=()")

		// Credential and admin responses must not land in shared caches
		if isNoStorePath(c.Request.URL.Path) {
			c.Header("Cache-Control", "no-store")
			c.Header("Pragma", "no-cache")
		}

		c.Next()
	}
}

func isNoStorePath(path string) bool {
	for _, prefix := range noStorePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// StrictTransportSecurityMiddleware adds the HSTS header for HTTPS-only
// access. Only enable this when serving over HTTPS, as it will break HTTP
// access for up to maxAge seconds.
func StrictTransportSecurityMiddleware(maxAge int) gin.HandlerFunc {
	value := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		// Only set HSTS if the request came over HTTPS
		if isSecureRequest(c) {
			c.Header("Strict-Transport-Security", value)
		}

		c.Next()
	}
}

// HTTPSRedirectMiddleware permanently redirects plain-HTTP requests to their
// HTTPS equivalents. Health probes are exempt so load balancers can keep
// checking over plain HTTP.
func HTTPSRedirectMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSecureRequest(c) {
			c.Next()
			return
		}

		path := c.Request.URL.Path
		if path == "/health" || path == "/ping" {
			c.Next()
			return
		}

		target := "https://" + c.Request.Host + c.Request.URL.RequestURI()
		c.Redirect(http.StatusMovedPermanently, target)
		c.Abort()
	}
}

// isSecureRequest reports whether the request arrived over HTTPS, either
// directly or via a TLS-terminating proxy.
func isSecureRequest(c *gin.Context) bool {
	return c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https"
}
