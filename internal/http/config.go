package http

import (
	"librarium/internal/audit"
	"librarium/internal/auth"
	"librarium/internal/config"
	"librarium/internal/database"
	"librarium/internal/database/authors"
	"librarium/internal/database/books"
	"librarium/internal/database/librarians"
	"librarium/internal/database/libraries"
	"librarium/internal/database/users"
	"librarium/internal/demo"
	"librarium/internal/tasks"
)

// RouterConfig carries everything NewRouter needs to assemble the server.
// Fields marked optional may stay nil, in which case the matching feature
// is left out of the chain.
type RouterConfig struct {
	// Core dependencies
	Database *database.Database
	Auditor  *audit.Service

	// Catalog repositories. The router hands these to controllers, which
	// accept them through their own narrow interfaces.
	BookRepo      *books.Repository
	AuthorRepo    *authors.Repository
	LibraryRepo   *libraries.Repository
	LibrarianRepo *librarians.Repository
	UserRepo      *users.Repository

	// Authentication
	AuthService    *auth.Service
	SessionManager *auth.SessionManager
	AuthMiddleware *auth.Middleware
	AuthConfig     config.Auth
	CSRFSecret     []byte
	SecureCookies  bool
	LoginLimiter   *auth.RateLimiter

	// HTTPS hardening
	ForceHTTPS  bool
	HSTSSeconds int

	// Global per-IP request budget (optional)
	RequestLimiter *RequestRateLimiter

	// Demo mode blocks every mutating request (optional)
	DemoMiddleware *demo.Middleware

	// Task queue client (optional)
	TaskClient *tasks.Client

	// AuditRetentionDays is the default retention for cleanup runs.
	AuditRetentionDays int

	// UI paths
	TemplatesPath string
	StaticPath    string

	// Application info
	Version string
}
