package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"librarium/internal/auth"
	"librarium/internal/entities"
)

// NewRouter builds the gin engine: the middleware chain in its required
// order, then the auth, catalog, dashboard and admin route groups.
func NewRouter(cfg RouterConfig) *gin.Engine {
	RegisterValidators()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger())
	router.Use(Metrics())

	// Security headers go on every response; the HTTPS concerns only when
	// they are configured.
	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.ForceHTTPS {
		router.Use(auth.HTTPSRedirectMiddleware())
	}
	if cfg.HSTSSeconds > 0 {
		router.Use(auth.StrictTransportSecurityMiddleware(cfg.HSTSSeconds))
	}

	// Global request budget, separate from the login-attempt limiter
	if cfg.RequestLimiter != nil {
		router.Use(cfg.RequestLimiter.Middleware())
	}

	router.Use(SecurityLog(cfg.Auditor))

	// Ordering constraint: gorilla/csrf swaps the request object to carry
	// its context value, so the session loader must run after it for the
	// session context to survive into the handlers.
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies, cfg.AuthService))
	}
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	// Identity resolution, once sessions are loaded
	if cfg.AuthMiddleware != nil {
		router.Use(cfg.AuthMiddleware.Handler())
	}

	// Demo mode runs after auth so visitors can still sign in and out
	if cfg.DemoMiddleware != nil && cfg.DemoMiddleware.IsEnabled() {
		router.Use(cfg.DemoMiddleware.Handler())
	}

	if cfg.StaticPath != "" {
		router.Static("/static", cfg.StaticPath)
	}

	// Role and permission gates become no-ops without auth middleware
	requireRole := func(roles ...entities.UserRole) gin.HandlerFunc {
		if cfg.AuthMiddleware == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return cfg.AuthMiddleware.RequireRole(roles...)
	}
	requirePermission := func(perm entities.Permission) gin.HandlerFunc {
		if cfg.AuthMiddleware == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return cfg.AuthMiddleware.RequirePermission(perm)
	}

	// Register auth routes if auth service is available. The auth controller
	// loads its own templates and falls back to JSON without them.
	if cfg.AuthService != nil && cfg.AuthService.IsAuthEnabled() {
		authController := auth.NewAuthController(cfg.AuthService, cfg.SessionManager,
			cfg.Auditor, cfg.LoginLimiter, cfg.TemplatesPath, cfg.AuthConfig)
		authController.RegisterRoutes(router)

		apiAuthController := auth.NewAPIAuthController(cfg.AuthService, cfg.Auditor,
			cfg.LoginLimiter, cfg.AuthConfig)
		apiAuthController.RegisterRoutes(router)
	}

	// Catalog controllers
	health := NewHealthController(cfg.Database, cfg.Version)
	booksController := NewBooksController(cfg.BookRepo, cfg.AuthorRepo, cfg.Auditor)
	authorsController := NewAuthorsController(cfg.AuthorRepo, cfg.Auditor)
	librariesController := NewLibrariesController(cfg.LibraryRepo, cfg.LibrarianRepo, cfg.Auditor)
	librariansController := NewLibrariansController(cfg.LibrarianRepo, cfg.Auditor)

	// Health and metrics endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	router.GET("/metrics", MetricsHandler())

	// Books API endpoints
	booksAPI := router.Group("/api/books")
	booksAPI.GET("", requirePermission(entities.PermissionView), booksController.ListBooks)
	booksAPI.GET("/search", requirePermission(entities.PermissionView), booksController.SearchBooks)
	booksAPI.GET("/:id", requirePermission(entities.PermissionView), booksController.GetBook)
	booksAPI.GET("/:id/summary", requirePermission(entities.PermissionView), booksController.BookSummary)
	booksAPI.POST("", requirePermission(entities.PermissionCreate), booksController.CreateBook)
	booksAPI.PUT("/:id", requirePermission(entities.PermissionEdit), booksController.UpdateBook)
	booksAPI.PATCH("/:id", requirePermission(entities.PermissionEdit), booksController.PatchBook)
	booksAPI.DELETE("/:id", requireRole(entities.UserRoleAdmin), booksController.DeleteBook)

	// Authors API endpoints
	authorsAPI := router.Group("/api/authors")
	authorsAPI.GET("", requirePermission(entities.PermissionView), authorsController.ListAuthors)
	authorsAPI.GET("/:id", requirePermission(entities.PermissionView), authorsController.GetAuthor)
	authorsAPI.GET("/:id/books", requirePermission(entities.PermissionView), authorsController.AuthorBooks)
	authorsAPI.POST("", requirePermission(entities.PermissionCreate), authorsController.CreateAuthor)
	authorsAPI.PUT("/:id", requirePermission(entities.PermissionEdit), authorsController.UpdateAuthor)
	authorsAPI.DELETE("/:id", requireRole(entities.UserRoleAdmin), authorsController.DeleteAuthor)

	// Libraries API endpoints
	librariesAPI := router.Group("/api/libraries")
	librariesAPI.GET("", requirePermission(entities.PermissionView), librariesController.ListLibraries)
	librariesAPI.GET("/:id", requirePermission(entities.PermissionView), librariesController.GetLibrary)
	librariesAPI.GET("/:id/books", requirePermission(entities.PermissionView), librariesController.LibraryBooks)
	librariesAPI.GET("/:id/librarian", requirePermission(entities.PermissionView), librariesController.LibraryLibrarian)
	librariesAPI.POST("", requirePermission(entities.PermissionCreate), librariesController.CreateLibrary)
	librariesAPI.PUT("/:id", requirePermission(entities.PermissionEdit), librariesController.UpdateLibrary)
	librariesAPI.POST("/:id/books/:bookId", requirePermission(entities.PermissionEdit), librariesController.AddLibraryBook)
	librariesAPI.DELETE("/:id/books/:bookId", requirePermission(entities.PermissionEdit), librariesController.RemoveLibraryBook)
	librariesAPI.DELETE("/:id", requireRole(entities.UserRoleAdmin), librariesController.DeleteLibrary)

	// Librarians API endpoints
	librariansAPI := router.Group("/api/librarians")
	librariansAPI.GET("", requirePermission(entities.PermissionView), librariansController.ListLibrarians)
	librariansAPI.GET("/:id", requirePermission(entities.PermissionView), librariansController.GetLibrarian)
	librariansAPI.POST("", requirePermission(entities.PermissionCreate), librariansController.CreateLibrarian)
	librariansAPI.PUT("/:id", requirePermission(entities.PermissionEdit), librariansController.UpdateLibrarian)
	librariansAPI.DELETE("/:id", requireRole(entities.UserRoleAdmin), librariansController.DeleteLibrarian)

	// Role dashboards
	if cfg.UserRepo != nil {
		dashboardController := NewDashboardController(cfg.UserRepo, cfg.BookRepo,
			cfg.AuthorRepo, cfg.LibraryRepo, cfg.LibrarianRepo)
		dashboards := router.Group("/api/dashboard")
		dashboards.GET("/admin", requireRole(entities.UserRoleAdmin), dashboardController.AdminDashboard)
		dashboards.GET("/librarian", requireRole(entities.UserRoleLibrarian, entities.UserRoleAdmin), dashboardController.LibrarianDashboard)
		dashboards.GET("/member", requireRole(entities.UserRoleMember, entities.UserRoleLibrarian, entities.UserRoleAdmin), dashboardController.MemberDashboard)
	}

	// Admin endpoints
	if cfg.UserRepo != nil && cfg.Auditor != nil {
		adminCfg := AdminConfig{
			Users:         cfg.UserRepo,
			Auditor:       cfg.Auditor,
			TaskClient:    cfg.TaskClient,
			Books:         cfg.BookRepo,
			Authors:       cfg.AuthorRepo,
			Libraries:     cfg.LibraryRepo,
			Librarians:    cfg.LibrarianRepo,
			RetentionDays: cfg.AuditRetentionDays,
		}
		if cfg.AuthService != nil {
			adminCfg.Roles = cfg.AuthService
		}
		adminController := NewAdminController(adminCfg)
		adminAPI := router.Group("/api/admin", requireRole(entities.UserRoleAdmin))
		adminAPI.GET("/users", adminController.ListUsers)
		adminAPI.PATCH("/users/:id/role", adminController.ChangeUserRole)
		adminAPI.GET("/audit", adminController.AuditEvents)
		adminAPI.POST("/audit/cleanup", adminController.RunAuditCleanup)
		adminAPI.GET("/stats", adminController.Stats)

		// Task queue introspection
		if cfg.TaskClient != nil {
			tasksController := NewTasksController(cfg.TaskClient, cfg.AuditRetentionDays)
			adminAPI.GET("/tasks/types", tasksController.ListTaskTypes)
			adminAPI.GET("/tasks/:id", tasksController.GetTaskStatus)
			adminAPI.POST("/tasks/:type/run", tasksController.RunTask)
		}
	}

	return router
}
