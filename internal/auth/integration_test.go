package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"librarium/internal/config"
	"librarium/internal/entities"
)

// setupTestRouter wires the full auth surface the way the entrypoint does:
// session middleware, auth middleware, web controller and API controller,
// plus one protected catalog route to exercise access control.
func setupTestRouter(t *testing.T, cfg config.Auth) (*gin.Engine, *Service, *SessionManager) {
	t.Helper()
	db := setupTestDB(t)
	if cfg.Mode == "" {
		cfg.Mode = config.AuthModeLocal
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 4 // Low cost for faster tests
	}
	if cfg.SessionLifetime == 0 {
		cfg.SessionLifetime = time.Hour
	}

	svc := NewService(db, cfg)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sm, err := NewSessionManager(sqlDB, cfg)
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	mw := NewMiddleware(svc, sm, cfg)

	limiter := NewRateLimiter(RateLimitConfig{
		MaxAttempts:     100,
		WindowDuration:  time.Minute,
		LockoutDuration: time.Minute,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(limiter.Stop)

	router := gin.New()
	router.Use(sm.SessionLoadSave())
	router.Use(mw.Handler())

	NewAuthController(svc, sm, nil, limiter, "", cfg).RegisterRoutes(router)
	NewAPIAuthController(svc, nil, limiter, cfg).RegisterRoutes(router)

	router.GET("/api/books", mw.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"username": GetUsername(c), "role": GetUserRole(c)})
	})
	router.GET("/books", mw.RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, "catalog")
	})

	return router, svc, sm
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range (&http.Response{Header: w.Header()}).Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	return nil
}

func TestIntegration_SetupFlow(t *testing.T) {
	router, svc, _ := setupTestRouter(t, config.Auth{})

	// Fresh database: login page points to setup
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/setup" {
		t.Fatalf("GET /login: status = %d, Location = %q, want redirect to /setup", w.Code, w.Header().Get("Location"))
	}

	// Create the first admin
	form := url.Values{
		"username":         {"admin"},
		"email":            {"admin@example.com"},
		"password":         {"password12345"},
		"confirm_password": {"password12345"},
	}
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/setup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("POST /setup: status = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Location") != "/" {
		t.Errorf("POST /setup Location = %q, want /", w.Header().Get("Location"))
	}

	// The first user is an admin and is logged in immediately
	user, err := svc.Authenticate("admin", "password12345")
	if err != nil {
		t.Fatalf("setup admin cannot authenticate: %v", err)
	}
	if user.Role != entities.UserRoleAdmin {
		t.Errorf("setup user role = %v, want admin", user.Role)
	}

	cookie := sessionCookie(t, w)
	if cookie == nil {
		t.Fatal("no session cookie after setup")
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/books", nil)
	req.AddCookie(cookie)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("GET /books with setup session: status = %d, want 200", w.Code)
	}

	// Once users exist, setup is closed
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/setup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/login" {
		t.Errorf("POST /setup after setup: status = %d, Location = %q, want redirect to /login", w.Code, w.Header().Get("Location"))
	}
}

func TestIntegration_SessionLoginLogout(t *testing.T) {
	router, svc, _ := setupTestRouter(t, config.Auth{})

	if _, err := svc.CreateUser("member", "member@example.com", "password12345", entities.UserRoleMember); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	// Unauthenticated browser request is redirected to login
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/books", nil)
	req.Header.Set("Accept", "text/html")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusFound {
		t.Fatalf("GET /books anonymous: status = %d, want 302", w.Code)
	}

	// Login with the next parameter
	form := url.Values{
		"username": {"member"},
		"password": {"password12345"},
		"next":     {"/books"},
	}
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("POST /login: status = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Location") != "/books" {
		t.Errorf("Location = %q, want /books", w.Header().Get("Location"))
	}
	cookie := sessionCookie(t, w)
	if cookie == nil {
		t.Fatal("no session cookie after login")
	}

	// The session grants access
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/books", nil)
	req.AddCookie(cookie)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /books with session: status = %d, want 200", w.Code)
	}

	// Logout destroys the session
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/login" {
		t.Fatalf("POST /logout: status = %d, Location = %q", w.Code, w.Header().Get("Location"))
	}

	// The old cookie no longer authenticates
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/books", nil)
	req.Header.Set("Accept", "text/html")
	req.AddCookie(cookie)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusFound {
		t.Errorf("GET /books after logout: status = %d, want 302", w.Code)
	}
}

func TestIntegration_LoginFailure(t *testing.T) {
	router, svc, _ := setupTestRouter(t, config.Auth{})

	if _, err := svc.CreateUser("member", "member@example.com", "password12345", entities.UserRoleMember); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	form := url.Values{
		"username": {"member"},
		"password": {"not-the-password"},
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("POST /login wrong password: status = %d, want 401", w.Code)
	}
	if sessionCookie(t, w) != nil {
		t.Error("session cookie issued for failed login")
	}
}

func TestIntegration_TokenFlow(t *testing.T) {
	router, svc, _ := setupTestRouter(t, config.Auth{})

	if _, err := svc.CreateUser("apiuser", "api@example.com", "password12345", entities.UserRoleLibrarian); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	// Obtain a token with JSON credentials
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/token",
		strings.NewReader(`{"username":"apiuser","password":"password12345"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/auth/token: status = %d, body = %s", w.Code, w.Body.String())
	}

	var tokenResp struct {
		Token string `json:"token"`
		User  struct {
			Username string            `json:"username"`
			Role     entities.UserRole `json:"role"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &tokenResp); err != nil {
		t.Fatalf("failed to decode token response: %v", err)
	}
	if tokenResp.Token == "" {
		t.Fatal("empty token in response")
	}
	if tokenResp.User.Username != "apiuser" || tokenResp.User.Role != entities.UserRoleLibrarian {
		t.Errorf("user in response = %+v", tokenResp.User)
	}

	// The token authenticates API requests
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.Header.Set("Authorization", "Bearer "+tokenResp.Token)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/books with token: status = %d", w.Code)
	}

	// Revoke the token
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/auth/token", nil)
	req.Header.Set("Authorization", "Bearer "+tokenResp.Token)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("DELETE /api/auth/token: status = %d, body = %s", w.Code, w.Body.String())
	}

	// Revoked tokens stop working
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.Header.Set("Authorization", "Bearer "+tokenResp.Token)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/books with revoked token: status = %d, want 401", w.Code)
	}
}

func TestIntegration_TokenInvalidCredentials(t *testing.T) {
	router, svc, _ := setupTestRouter(t, config.Auth{})

	if _, err := svc.CreateUser("apiuser", "api@example.com", "password12345", entities.UserRoleMember); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "wrong password",
			body:       `{"username":"apiuser","password":"wrong-password"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown user",
			body:       `{"username":"ghost","password":"password12345"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing fields",
			body:       `{"username":"apiuser"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed JSON",
			body:       `{"username":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body = %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}

	// Revoking without a token is rejected
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/auth/token", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("DELETE /api/auth/token anonymous: status = %d, want 401", w.Code)
	}
}

func TestIntegration_APIRegister(t *testing.T) {
	router, _, _ := setupTestRouter(t, config.Auth{RegistrationOpen: true})

	body := `{"username":"newmember","email":"new@example.com","password":"password12345","date_of_birth":"1995-04-20"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/auth/register: status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
		User  struct {
			Role entities.UserRole `json:"role"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode register response: %v", err)
	}
	if resp.Token == "" {
		t.Error("register response has no token")
	}
	if resp.User.Role != entities.UserRoleMember {
		t.Errorf("self-registered role = %v, want member", resp.User.Role)
	}

	// Duplicate registration conflicts
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate register: status = %d, want 409", w.Code)
	}

	// Weak password is a validation error
	weak := `{"username":"weakling","email":"weak@example.com","password":"short"}`
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(weak))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("weak password register: status = %d, want 400", w.Code)
	}
}

func TestIntegration_APIRegisterClosed(t *testing.T) {
	router, _, _ := setupTestRouter(t, config.Auth{RegistrationOpen: false})

	body := `{"username":"newmember","email":"new@example.com","password":"password12345"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("register while closed: status = %d, want 403", w.Code)
	}
}

func TestIntegration_WebRegister(t *testing.T) {
	router, svc, _ := setupTestRouter(t, config.Auth{RegistrationOpen: true})

	form := url.Values{
		"username":         {"webmember"},
		"email":            {"web@example.com"},
		"password":         {"password12345"},
		"confirm_password": {"password12345"},
		"date_of_birth":    {"1990-01-02"},
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("POST /register: status = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Location") != "/login?registered=1" {
		t.Errorf("Location = %q, want /login?registered=1", w.Header().Get("Location"))
	}

	user, err := svc.Authenticate("webmember", "password12345")
	if err != nil {
		t.Fatalf("registered user cannot authenticate: %v", err)
	}
	if user.Role != entities.UserRoleMember {
		t.Errorf("registered role = %v, want member", user.Role)
	}
	if user.DateOfBirth == nil {
		t.Error("date of birth was not stored")
	}

	// Mismatched confirmation is rejected
	form.Set("username", "webmember2")
	form.Set("email", "web2@example.com")
	form.Set("confirm_password", "different-password")
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("mismatched passwords: status = %d, want 400", w.Code)
	}
}

func TestIntegration_Profile(t *testing.T) {
	router, svc, _ := setupTestRouter(t, config.Auth{})

	user, err := svc.CreateUser("profileuser", "profile@example.com", "password12345", entities.UserRoleLibrarian)
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	dob := time.Date(1988, 3, 9, 0, 0, 0, 0, time.UTC)
	if _, err := svc.UpdateProfile(user.ID, &dob, ""); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	token, err := svc.GenerateToken(user.ID)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/auth/profile: status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
		Age         int                   `json:"age"`
		Permissions []entities.Permission `json:"permissions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode profile response: %v", err)
	}
	if resp.User.Username != "profileuser" {
		t.Errorf("profile username = %q", resp.User.Username)
	}
	if resp.Age <= 0 {
		t.Errorf("profile age = %d, want positive", resp.Age)
	}
	found := false
	for _, p := range resp.Permissions {
		if p == entities.PermissionCanCreate {
			found = true
		}
	}
	if !found {
		t.Errorf("librarian permissions = %v, want can_create included", resp.Permissions)
	}

	// Anonymous profile request
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous profile: status = %d, want 401", w.Code)
	}
}

func TestIntegration_NoneModeBypassesAuth(t *testing.T) {
	router, _, _ := setupTestRouter(t, config.Auth{Mode: config.AuthModeNone})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("GET /api/books in none mode: status = %d, want 200", w.Code)
	}
}
