package auth

import (
	"database/sql"
	"encoding/gob"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"

	"librarium/internal/config"
	"librarium/internal/entities"
)

// Keys under which login state is stored in the session.
const (
	SessionKeyUserID   = "user_id"
	SessionKeyUsername = "username"
	SessionKeyRole     = "role"
	SessionKeyLoginAt  = "login_at"
)

const sessionCookieName = "session"

// sessionSchema is the scs sqlite3store table. It shares the catalog
// database file, so one backup covers both.
const sessionSchema = `CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	expiry REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`

func init() {
	// scs stores values via gob; every non-builtin session type must be
	// registered up front.
	gob.Register(entities.UserRole(""))
	gob.Register(time.Time{})
}

// SessionManager wraps scs.SessionManager with catalog-specific accessors.
type SessionManager struct {
	*scs.SessionManager
}

// NewSessionManager prepares the sessions table and returns a manager wired
// to it. sqlDB is the raw connection underneath GORM.
func NewSessionManager(sqlDB *sql.DB, cfg config.Auth) (*SessionManager, error) {
	if _, err := sqlDB.Exec(sessionSchema); err != nil {
		return nil, err
	}

	sm := scs.New()
	sm.Store = sqlite3store.New(sqlDB)
	sm.Lifetime = cfg.SessionLifetime
	// Inactive sessions expire at half the absolute lifetime
	sm.IdleTimeout = cfg.SessionLifetime / 2

	sm.Cookie.Name = sessionCookieName
	sm.Cookie.Path = "/"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = cfg.SecureCookies
	sm.Cookie.SameSite = http.SameSiteStrictMode

	return &SessionManager{SessionManager: sm}, nil
}

// CreateSession starts a fresh session for user. Call it only after the
// password check has passed.
func (sm *SessionManager) CreateSession(r *http.Request, user *entities.User) error {
	// A new token on login defeats session fixation
	if err := sm.RenewToken(r.Context()); err != nil {
		return err
	}

	ctx := r.Context()
	// GetInt on the way out requires an int on the way in
	sm.Put(ctx, SessionKeyUserID, int(user.ID))
	sm.Put(ctx, SessionKeyUsername, user.Username)
	sm.Put(ctx, SessionKeyRole, user.Role)
	sm.Put(ctx, SessionKeyLoginAt, time.Now())
	return nil
}

// DestroySession drops the session data and invalidates the token.
func (sm *SessionManager) DestroySession(r *http.Request) error {
	return sm.Destroy(r.Context())
}

// GetUserID returns the logged-in user's ID, or 0 for anonymous requests.
func (sm *SessionManager) GetUserID(r *http.Request) uint {
	return uint(sm.GetInt(r.Context(), SessionKeyUserID))
}

// GetUsername returns the logged-in username, empty for anonymous requests.
func (sm *SessionManager) GetUsername(r *http.Request) string {
	return sm.GetString(r.Context(), SessionKeyUsername)
}

// GetUserRole returns the role stored at login time.
func (sm *SessionManager) GetUserRole(r *http.Request) entities.UserRole {
	if role, ok := sm.Get(r.Context(), SessionKeyRole).(entities.UserRole); ok {
		return role
	}
	return ""
}

// IsAuthenticated reports whether the request carries a live session.
func (sm *SessionManager) IsAuthenticated(r *http.Request) bool {
	return sm.GetUserID(r) != 0
}

// SessionData is a snapshot of everything stored at login.
type SessionData struct {
	UserID   uint
	Username string
	Role     entities.UserRole
	LoginAt  time.Time
}

// GetSessionData returns the full login snapshot, nil for anonymous requests.
func (sm *SessionManager) GetSessionData(r *http.Request) *SessionData {
	userID := sm.GetUserID(r)
	if userID == 0 {
		return nil
	}

	loginAt, _ := sm.Get(r.Context(), SessionKeyLoginAt).(time.Time)
	return &SessionData{
		UserID:   userID,
		Username: sm.GetUsername(r),
		Role:     sm.GetUserRole(r),
		LoginAt:  loginAt,
	}
}
