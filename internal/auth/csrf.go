package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
)

const csrfContextKey = "csrf_token"

// CSRFMiddleware wires gorilla/csrf into the gin chain. Safe methods pass
// through, forms must carry the hidden gorilla.csrf.Token field and AJAX
// callers the X-CSRF-Token header. Requests authenticated with a valid
// bearer token skip the check entirely, since a browser cannot be tricked
// into attaching one cross-site.
//
// With a nil authService any Authorization: Bearer header skips the check;
// only tests run it that way.
func CSRFMiddleware(secret []byte, secure bool, authService *Service) gin.HandlerFunc {
	protect := csrf.Protect(
		secret,
		csrf.Secure(secure),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteStrictMode),
		csrf.Path("/"),
		csrf.ErrorHandler(http.HandlerFunc(csrfFailure)),
	)

	return func(c *gin.Context) {
		if bearerAuthenticated(c, authService) {
			c.Next()
			return
		}

		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Expose the token to handlers. The session middleware runs
			// later and layers its context on top of the csrf one.
			c.Set(csrfContextKey, csrf.Token(r))
			c.Request = r
			c.Next()
		})
		protect(inner).ServeHTTP(c.Writer, c.Request)
	}
}

// bearerAuthenticated reports whether the request carries a bearer token
// that the auth service accepts. Nil service means presence alone counts.
func bearerAuthenticated(c *gin.Context, authService *Service) bool {
	token := bearerToken(c)
	if token == "" {
		return false
	}
	if authService == nil {
		return true
	}
	_, err := authService.ValidateToken(token)
	return err == nil
}

const csrfFailurePage = `<!DOCTYPE html>
<html>
<head><title>Session Expired</title></head>
<body style="font-family: system-ui; max-width: 400px; margin: 100px auto; text-align: center;">
<h1>Session Expired</h1>
<p>Your session has expired or the form submission was invalid.</p>
<p><a href="javascript:history.back()">Go back and try again</a></p>
</body>
</html>`

// csrfFailure answers rejected requests. JSON clients get a JSON error,
// form posts bounce back to the page they came from with an error query
// parameter, and anything else gets a small HTML page.
func csrfFailure(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"CSRF token invalid or missing"}`))
		return
	}

	if referer := r.Referer(); referer != "" {
		if u, err := url.Parse(referer); err == nil {
			q := u.Query()
			q.Set("error", "Session expired. Please try again.")
			u.RawQuery = q.Encode()
			http.Redirect(w, r, u.String(), http.StatusSeeOther)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(csrfFailurePage))
}

// GetCSRFToken returns the token the middleware stored for this request,
// empty when the middleware did not run.
func GetCSRFToken(c *gin.Context) string {
	if token, ok := c.Get(csrfContextKey); ok {
		if s, ok := token.(string); ok {
			return s
		}
	}
	return ""
}

// CSRFTokenField renders the hidden input forms must embed.
func CSRFTokenField(c *gin.Context) string {
	token := GetCSRFToken(c)
	if token == "" {
		return ""
	}
	return `<input type="hidden" name="gorilla.csrf.Token" value="` + token + `">`
}
