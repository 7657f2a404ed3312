// Package auth provides authentication and authorization for the application.
//
// It supports two authentication modes:
//   - "none": No authentication required, all requests use a default user ID
//   - "local": Local user database with session cookies for the auth pages
//     and Bearer tokens for the API (default)
//
// Roles follow the library domain: admins hold every permission, librarians
// can view, create and edit catalog records, members can only view. Role
// checks are enforced with RequireRole / RequirePermission middleware.
//
// # Configuration
//
// Set AUTH_MODE environment variable to select the mode:
//
//	AUTH_MODE=local  # Default, requires user creation and login
//	AUTH_MODE=none   # No auth required (development only)
//
// For local mode, additional configuration:
//
//	AUTH_SESSION_SECRET=<base64-32-bytes>  # Auto-generated if empty
//	AUTH_SESSION_LIFETIME=24h              # Session duration
//	AUTH_TOKEN_EXPIRY=720h                 # API token expiry (30 days default)
//	AUTH_BCRYPT_COST=12                    # bcrypt cost factor
//	AUTH_SECURE_COOKIES=true               # HTTPS-only cookies
//	AUTH_MAX_LOGIN_ATTEMPTS=5              # Failed logins before lockout
//	AUTH_REGISTRATION_OPEN=true            # Self-service member signup
//
// # Usage
//
// Initialize authentication in the entrypoint:
//
//	authService := auth.NewService(db, cfg.Auth)
//	authMiddleware := auth.NewMiddleware(authService, sessions, cfg.Auth)
//	router.Use(authMiddleware.Handler())
//
// Extract user in handlers:
//
//	userID := auth.GetUserID(c)  // Returns DefaultUserID in "none" mode
//	role := auth.GetUserRole(c)
package auth
