package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"librarium/internal/config"
	"librarium/internal/entities"
)

// Keys under which the resolved identity is stored in the gin context.
const (
	ContextKeyUserID   = "auth_user_id"
	ContextKeyUsername = "auth_username"
	ContextKeyRole     = "auth_role"
	ContextKeyAuthType = "auth_type"
)

// AuthType says which credential authenticated the request.
type AuthType string

const (
	AuthTypeNone    AuthType = "none"
	AuthTypeSession AuthType = "session"
	AuthTypeBearer  AuthType = "bearer"
)

// DefaultUserID is attached to requests that carry no identity, and to every
// request when authentication is disabled.
const DefaultUserID = uint(0)

// publicPaths need no credentials. /static is matched by prefix as well,
// everything else exactly.
var publicPaths = map[string]struct{}{
	"/health":            {},
	"/ping":              {},
	"/metrics":           {},
	"/login":             {},
	"/register":          {},
	"/setup":             {},
	"/static":            {},
	"/favicon.ico":       {},
	"/api/auth/token":    {},
	"/api/auth/register": {},
}

func isPublicPath(path string) bool {
	if _, ok := publicPaths[path]; ok {
		return true
	}
	return strings.HasPrefix(path, "/static/")
}

// bearerToken extracts the token from an Authorization: Bearer header,
// empty when the header is absent or malformed. The scheme match is
// case-insensitive.
func bearerToken(c *gin.Context) string {
	fields := strings.Fields(c.GetHeader("Authorization"))
	if len(fields) != 2 || !strings.EqualFold(fields[0], "bearer") {
		return ""
	}
	return fields[1]
}

// isAPIRequest separates API calls from browser navigation: API paths, JSON
// accept headers and anything carrying an Authorization header.
func isAPIRequest(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		return true
	}
	return c.GetHeader("Authorization") != ""
}

// Middleware resolves the caller's identity and guards protected routes.
type Middleware struct {
	service        *Service
	sessionManager *SessionManager
	config         config.Auth
}

// NewMiddleware creates the authentication middleware. sessionManager may
// be nil for API-only deployments.
func NewMiddleware(service *Service, sessionManager *SessionManager, cfg config.Auth) *Middleware {
	return &Middleware{
		service:        service,
		sessionManager: sessionManager,
		config:         cfg,
	}
}

// Handler returns the gin middleware that authenticates every request.
func (m *Middleware) Handler() gin.HandlerFunc {
	if m.config.Mode == config.AuthModeNone {
		return func(c *gin.Context) {
			anonymous(c)
			c.Next()
		}
	}
	return m.authenticate
}

// authenticate resolves credentials on every request. Public paths never
// reject, but a presented identity still sticks: token revocation shares
// its route with token creation.
func (m *Middleware) authenticate(c *gin.Context) {
	if user, authType := m.resolveUser(c); user != nil {
		setUserContext(c, user, authType)
		c.Next()
		return
	}

	if isPublicPath(c.Request.URL.Path) {
		anonymous(c)
		c.Next()
		return
	}

	m.rejectUnauthenticated(c)
}

// resolveUser tries each credential type. Bearer tokens win over session
// cookies so an API call made from a logged-in browser acts as the token's
// owner; an invalid token still falls back to the session.
func (m *Middleware) resolveUser(c *gin.Context) (*entities.User, AuthType) {
	if token := bearerToken(c); token != "" {
		if user, err := m.service.ValidateToken(token); err == nil {
			return user, AuthTypeBearer
		}
	}

	if m.sessionManager != nil {
		if id := m.sessionManager.GetUserID(c.Request); id != 0 {
			if user, err := m.service.GetUserByID(id); err == nil {
				return user, AuthTypeSession
			}
		}
	}

	return nil, AuthTypeNone
}

// rejectUnauthenticated ends the request: 401 JSON for API callers, a
// redirect to the login form for browsers.
func (m *Middleware) rejectUnauthenticated(c *gin.Context) {
	if isAPIRequest(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "authentication required",
		})
		return
	}
	c.Redirect(http.StatusFound, "/login?next="+c.Request.URL.Path)
	c.Abort()
}

// anonymous marks the request as carrying no identity.
func anonymous(c *gin.Context) {
	c.Set(ContextKeyUserID, DefaultUserID)
	c.Set(ContextKeyAuthType, AuthTypeNone)
}

func setUserContext(c *gin.Context, user *entities.User, authType AuthType) {
	c.Set(ContextKeyUserID, user.ID)
	c.Set(ContextKeyUsername, user.Username)
	c.Set(ContextKeyRole, user.Role)
	c.Set(ContextKeyAuthType, authType)
}

// RequireAuth rejects anonymous requests. Use it on routes that must stay
// protected even if they are ever added to the public list.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserID(c) == 0 && m.config.Mode == config.AuthModeLocal {
			m.rejectUnauthenticated(c)
			return
		}
		c.Next()
	}
}

// RequireRole lets only the listed roles through.
func (m *Middleware) RequireRole(roles ...entities.UserRole) gin.HandlerFunc {
	allowed := make(map[entities.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		if m.config.Mode == config.AuthModeNone {
			c.Next()
			return
		}
		if _, ok := allowed[GetUserRole(c)]; !ok {
			m.forbid(c)
			return
		}
		c.Next()
	}
}

// RequirePermission lets requests through when the caller's role carries
// the permission. Admins hold every permission, librarians can view,
// create and edit, members can only view.
func (m *Middleware) RequirePermission(perm entities.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.config.Mode == config.AuthModeNone {
			c.Next()
			return
		}
		if !GetUserRole(c).Can(perm) {
			m.forbid(c)
			return
		}
		c.Next()
	}
}

// forbid rejects the request with 403, as JSON for API clients.
func (m *Middleware) forbid(c *gin.Context) {
	if isAPIRequest(c) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "insufficient permissions",
		})
		return
	}
	c.AbortWithStatus(http.StatusForbidden)
}

// GetUserID returns the authenticated user's ID, DefaultUserID when the
// request is anonymous or authentication is disabled.
func GetUserID(c *gin.Context) uint {
	if id, ok := c.Get(ContextKeyUserID); ok {
		if userID, ok := id.(uint); ok {
			return userID
		}
	}
	return DefaultUserID
}

// GetUsername returns the authenticated user's username, empty when
// anonymous.
func GetUsername(c *gin.Context) string {
	if name, ok := c.Get(ContextKeyUsername); ok {
		if username, ok := name.(string); ok {
			return username
		}
	}
	return ""
}

// GetUserRole returns the authenticated user's role, empty when anonymous.
func GetUserRole(c *gin.Context) entities.UserRole {
	if r, ok := c.Get(ContextKeyRole); ok {
		if role, ok := r.(entities.UserRole); ok {
			return role
		}
	}
	return ""
}

// GetAuthType reports which credential authenticated the request.
func GetAuthType(c *gin.Context) AuthType {
	if t, ok := c.Get(ContextKeyAuthType); ok {
		if authType, ok := t.(AuthType); ok {
			return authType
		}
	}
	return AuthTypeNone
}

// IsAuthenticated reports whether the request acts as a known user. In
// "none" mode every request counts as authenticated.
func IsAuthenticated(c *gin.Context) bool {
	return GetUserID(c) != 0 || GetAuthType(c) == AuthTypeNone
}
