package auth

import (
	"errors"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"librarium/internal/audit"
	"librarium/internal/config"
	"librarium/internal/entities"
)

// setupMutex serializes first-run setup so only one admin can be created.
var setupMutex sync.Mutex

// dateLayout is the wire format for date-of-birth values.
const dateLayout = "2006-01-02"

// isLocalPath reports whether path is safe to use as a redirect target.
// Only same-host paths qualify: values without a leading slash (which covers
// scheme-carrying URLs) are rejected, as are protocol-relative prefixes and
// backslash variants a browser might normalize into one.
func isLocalPath(path string) bool {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return false
	}
	if strings.Contains(path, "://") || strings.Contains(path, `\`) {
		return false
	}
	return true
}

// sanitizeRedirectPath returns next when it is a local path, "/" otherwise.
func sanitizeRedirectPath(next string) string {
	if isLocalPath(next) {
		return next
	}
	return "/"
}

// createUserErrorMessage maps user-creation errors to form-friendly text.
func createUserErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrPasswordTooShort):
		return "Password must be at least 12 characters"
	case errors.Is(err, ErrPasswordTooLong):
		return "Password exceeds maximum length of 72 characters"
	case errors.Is(err, ErrUsernameRequired):
		return "Username is required"
	case errors.Is(err, ErrUsernameInvalid):
		return "Username must be 3-64 characters, alphanumeric with underscore/hyphen only"
	case errors.Is(err, ErrEmailRequired):
		return "Email is required"
	case errors.Is(err, ErrEmailInvalid):
		return "Invalid email format"
	case errors.Is(err, ErrUserExists):
		return "A user with this username or email already exists"
	default:
		return "Failed to create user"
	}
}

// AuthController handles the browser-facing authentication endpoints.
type AuthController struct {
	service        *Service
	sessionManager *SessionManager
	auditLog       *audit.Service
	rateLimiter    *RateLimiter
	templates      *template.Template
	config         config.Auth
}

// NewAuthController creates a new authentication controller. The template
// directory is optional; without it every page falls back to JSON, which is
// what the API-level tests exercise.
func NewAuthController(service *Service, sessionManager *SessionManager, auditLog *audit.Service, rateLimiter *RateLimiter, templatesPath string, cfg config.Auth) *AuthController {
	tmpl, err := template.ParseGlob(filepath.Join(templatesPath, "auth", "*.html"))
	if err != nil {
		tmpl = nil
	}

	return &AuthController{
		service:        service,
		sessionManager: sessionManager,
		auditLog:       auditLog,
		rateLimiter:    rateLimiter,
		templates:      tmpl,
		config:         cfg,
	}
}

// RegisterRoutes registers authentication routes on the router.
func (ac *AuthController) RegisterRoutes(router *gin.Engine) {
	router.GET("/login", ac.LoginPage)
	router.POST("/login", ac.Login)
	router.POST("/logout", ac.Logout)
	router.GET("/logout", ac.Logout) // Support GET for simple logout links
	router.GET("/register", ac.RegisterPage)
	router.POST("/register", ac.Register)
	router.GET("/setup", ac.SetupPage)
	router.POST("/setup", ac.Setup)
}

// LoginPage renders the login form. A fresh instance with no accounts sends
// the visitor to first-run setup instead.
func (ac *AuthController) LoginPage(c *gin.Context) {
	if ac.sessionManager != nil && ac.sessionManager.IsAuthenticated(c.Request) {
		c.Redirect(http.StatusFound, "/")
		return
	}

	if hasUsers, _ := ac.service.HasUsers(); !hasUsers {
		c.Redirect(http.StatusFound, "/setup")
		return
	}

	ac.renderPage(c, http.StatusOK, "login.html", "Login", gin.H{
		"Next":       sanitizeRedirectPath(c.Query("next")),
		"Error":      c.Query("error"),
		"Registered": c.Query("registered") != "",
	})
}

// Login handles the login form submission.
func (ac *AuthController) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	next := sanitizeRedirectPath(c.PostForm("next"))
	clientIP := c.ClientIP()

	if ac.rateLimiter != nil {
		if allowed, retryAfter := ac.rateLimiter.Allow(clientIP, username); !allowed {
			c.Header("Retry-After", retryAfterSeconds(retryAfter))
			ac.renderPage(c, http.StatusTooManyRequests, "login.html", "Login", gin.H{
				"Next":       next,
				"Username":   username,
				"Error":      "Too many login attempts. Please try again later.",
				"RetryAfter": retryAfter.Round(time.Second).String(),
			})
			return
		}
	}

	user, err := ac.service.Authenticate(username, password)
	if err != nil {
		if ac.rateLimiter != nil {
			ac.rateLimiter.RecordFailure(clientIP, username)
		}
		ac.logAuth(0, "login", c, false)

		// One message for unknown users and wrong passwords alike, so the
		// form does not reveal which usernames exist.
		msg := "Invalid username or password"
		if errors.Is(err, ErrAccountLocked) {
			msg = "Account is locked. Please try again later."
		}

		ac.renderPage(c, http.StatusUnauthorized, "login.html", "Login", gin.H{
			"Next":     next,
			"Username": username,
			"Error":    msg,
		})
		return
	}

	if ac.rateLimiter != nil {
		ac.rateLimiter.RecordSuccess(clientIP, username)
	}
	ac.logAuth(user.ID, "login", c, true)

	if ac.sessionManager != nil {
		if err := ac.sessionManager.CreateSession(c.Request, user); err != nil {
			ac.renderPage(c, http.StatusInternalServerError, "login.html", "Login", gin.H{
				"Next":     next,
				"Username": username,
				"Error":    "Failed to create session",
			})
			return
		}
	}

	c.Redirect(http.StatusFound, next)
}

// Logout destroys the session and redirects to login.
func (ac *AuthController) Logout(c *gin.Context) {
	if ac.sessionManager != nil {
		if userID := ac.sessionManager.GetUserID(c.Request); userID != 0 {
			ac.logAuth(userID, "logout", c, true)
		}
		_ = ac.sessionManager.DestroySession(c.Request)
	}
	c.Redirect(http.StatusFound, "/login")
}

// RegisterPage renders the self-service signup form.
func (ac *AuthController) RegisterPage(c *gin.Context) {
	if !ac.config.RegistrationOpen {
		c.Redirect(http.StatusFound, "/login?error=Registration+is+closed")
		return
	}

	if ac.sessionManager != nil && ac.sessionManager.IsAuthenticated(c.Request) {
		c.Redirect(http.StatusFound, "/")
		return
	}

	ac.renderPage(c, http.StatusOK, "register.html", "Register", gin.H{
		"Error": c.Query("error"),
	})
}

// Register creates a member account from the signup form.
// New accounts always get the member role; only admins hand out the rest.
func (ac *AuthController) Register(c *gin.Context) {
	if !ac.config.RegistrationOpen {
		c.Redirect(http.StatusFound, "/login?error=Registration+is+closed")
		return
	}

	username := c.PostForm("username")
	email := c.PostForm("email")
	password := c.PostForm("password")
	dateOfBirth := c.PostForm("date_of_birth")

	renderError := func(msg string) {
		ac.renderPage(c, http.StatusBadRequest, "register.html", "Register", gin.H{
			"Username":    username,
			"Email":       email,
			"DateOfBirth": dateOfBirth,
			"Error":       msg,
		})
	}

	if password != c.PostForm("confirm_password") {
		renderError("Passwords do not match")
		return
	}

	var dob *time.Time
	if dateOfBirth != "" {
		parsed, err := time.Parse(dateLayout, dateOfBirth)
		if err != nil {
			renderError("Date of birth must be YYYY-MM-DD")
			return
		}
		dob = &parsed
	}

	user, err := ac.service.CreateUser(username, email, password, entities.UserRoleMember)
	if err != nil {
		renderError(createUserErrorMessage(err))
		return
	}

	if dob != nil {
		_, _ = ac.service.UpdateProfile(user.ID, dob, "")
	}

	ac.logAuth(user.ID, "register", c, true)

	c.Redirect(http.StatusFound, "/login?registered=1")
}

// SetupPage renders the initial admin setup form. The error query parameter
// carries messages from CSRF-failure redirects.
func (ac *AuthController) SetupPage(c *gin.Context) {
	if !ac.setupAvailable(c) {
		return
	}

	ac.renderPage(c, http.StatusOK, "setup.html", "Initial Setup", gin.H{
		"Error": c.Query("error"),
	})
}

// Setup creates the first admin account. The mutex closes the window where
// two concurrent requests both observe an empty user table.
func (ac *AuthController) Setup(c *gin.Context) {
	setupMutex.Lock()
	defer setupMutex.Unlock()

	if !ac.setupAvailable(c) {
		return
	}

	username := c.PostForm("username")
	email := c.PostForm("email")
	password := c.PostForm("password")

	renderError := func(msg string) {
		ac.renderPage(c, http.StatusBadRequest, "setup.html", "Initial Setup", gin.H{
			"Username": username,
			"Email":    email,
			"Error":    msg,
		})
	}

	if password != c.PostForm("confirm_password") {
		renderError("Passwords do not match")
		return
	}

	user, err := ac.service.CreateUser(username, email, password, entities.UserRoleAdmin)
	if errors.Is(err, ErrUserExists) {
		// Lost the race to another setup request.
		c.Redirect(http.StatusFound, "/login")
		return
	}
	if err != nil {
		renderError(createUserErrorMessage(err))
		return
	}

	ac.logAuth(user.ID, "setup", c, true)

	if ac.sessionManager != nil {
		_ = ac.sessionManager.CreateSession(c.Request, user)
	}

	c.Redirect(http.StatusFound, "/")
}

// setupAvailable reports whether first-run setup is still open. When it is
// not, the response has already been written.
func (ac *AuthController) setupAvailable(c *gin.Context) bool {
	hasUsers, err := ac.service.HasUsers()
	if err != nil {
		ac.renderPage(c, http.StatusInternalServerError, "setup.html", "Initial Setup", gin.H{
			"Error": "Database error. Please try again.",
		})
		return false
	}
	if hasUsers {
		c.Redirect(http.StatusFound, "/login")
		return false
	}
	return true
}

// logAuth records an authentication event when auditing is wired.
func (ac *AuthController) logAuth(userID uint, action string, c *gin.Context, success bool) {
	if ac.auditLog == nil {
		return
	}
	ac.auditLog.LogAuth(userID, action, c.ClientIP(), c.Request.UserAgent(), success)
}

// renderPage renders an auth form with the fields every page shares filled in.
func (ac *AuthController) renderPage(c *gin.Context, status int, name, title string, data gin.H) {
	page := gin.H{
		"Title":     title,
		"CSRFToken": GetCSRFToken(c),
	}
	for k, v := range data {
		page[k] = v
	}
	ac.renderTemplate(c, status, name, page)
}

// renderTemplate executes an auth template, or writes the page data as JSON
// when the controller was built without a template directory.
func (ac *AuthController) renderTemplate(c *gin.Context, status int, name string, data gin.H) {
	if ac.templates == nil {
		c.JSON(status, data)
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := ac.templates.ExecuteTemplate(c.Writer, name, data); err != nil {
		c.String(http.StatusInternalServerError, "Template error: %v", err)
	}
}

// tokenRequest is the credentials payload for obtaining an API token.
type tokenRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// registerRequest is the JSON signup payload.
type registerRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=64"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=12,max=72"`
	DateOfBirth string `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
}

// APIAuthController handles the JSON authentication endpoints.
type APIAuthController struct {
	service     *Service
	auditLog    *audit.Service
	rateLimiter *RateLimiter
	config      config.Auth
}

// NewAPIAuthController creates a new API authentication controller.
func NewAPIAuthController(service *Service, auditLog *audit.Service, rateLimiter *RateLimiter, cfg config.Auth) *APIAuthController {
	return &APIAuthController{
		service:     service,
		auditLog:    auditLog,
		rateLimiter: rateLimiter,
		config:      cfg,
	}
}

// RegisterRoutes registers the JSON auth routes on the router.
func (tc *APIAuthController) RegisterRoutes(router *gin.Engine) {
	router.POST("/api/auth/token", tc.ObtainToken)
	router.DELETE("/api/auth/token", tc.RevokeToken)
	router.POST("/api/auth/register", tc.Register)
	router.GET("/api/auth/profile", tc.Profile)
}

// ObtainToken exchanges credentials for a fresh API token.
// Any previously issued token for the user is replaced.
func (tc *APIAuthController) ObtainToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	clientIP := c.ClientIP()
	if tc.rateLimiter != nil {
		allowed, retryAfter := tc.rateLimiter.Allow(clientIP, req.Username)
		if !allowed {
			c.Header("Retry-After", retryAfterSeconds(retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many login attempts",
				"retry_after": retryAfter.Round(time.Second).String(),
			})
			return
		}
	}

	user, err := tc.service.Authenticate(req.Username, req.Password)
	if err != nil {
		if tc.rateLimiter != nil {
			tc.rateLimiter.RecordFailure(clientIP, req.Username)
		}
		tc.logAuth(0, "api_token_obtain", c, false)

		if errors.Is(err, ErrAccountLocked) {
			c.JSON(http.StatusForbidden, gin.H{"error": ErrAccountLocked.Error()})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	if tc.rateLimiter != nil {
		tc.rateLimiter.RecordSuccess(clientIP, req.Username)
	}

	token, err := tc.service.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	tc.logAuth(user.ID, "api_token_obtain", c, true)

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// RevokeToken invalidates the authenticated user's API token.
func (tc *APIAuthController) RevokeToken(c *gin.Context) {
	userID := GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	if err := tc.service.RevokeToken(userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}

	tc.logAuth(userID, "api_token_revoke", c, true)

	c.JSON(http.StatusOK, gin.H{"message": "token revoked"})
}

// Register creates a member account and returns it with a ready-to-use token.
func (tc *APIAuthController) Register(c *gin.Context) {
	if !tc.config.RegistrationOpen {
		c.JSON(http.StatusForbidden, gin.H{"error": "registration is closed"})
		return
	}

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := tc.service.CreateUser(req.Username, req.Email, req.Password, entities.UserRoleMember)
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "user already exists"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.DateOfBirth != "" {
		if parsed, perr := time.Parse(dateLayout, req.DateOfBirth); perr == nil {
			if updated, uerr := tc.service.UpdateProfile(user.ID, &parsed, ""); uerr == nil {
				user = updated
			}
		}
	}

	token, err := tc.service.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	tc.logAuth(user.ID, "api_register", c, true)

	c.JSON(http.StatusCreated, gin.H{
		"token": token,
		"user":  user,
	})
}

// Profile returns the authenticated user with derived role information.
func (tc *APIAuthController) Profile(c *gin.Context) {
	userID := GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	user, err := tc.service.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":        user,
		"age":         user.Age(),
		"permissions": user.Role.Permissions(),
	})
}

// logAuth records an authentication event when auditing is wired.
func (tc *APIAuthController) logAuth(userID uint, action string, c *gin.Context, success bool) {
	if tc.auditLog == nil {
		return
	}
	tc.auditLog.LogAuth(userID, action, c.ClientIP(), c.Request.UserAgent(), success)
}
