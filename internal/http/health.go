package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"librarium/internal/database"
)

// HealthResponse is the /health payload probed by deploy tooling.
type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Uptime  string            `json:"uptime"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

type HealthController struct {
	db      *database.Database
	version string
	started time.Time
}

func NewHealthController(db *database.Database, version string) *HealthController {
	return &HealthController{
		db:      db,
		version: version,
		started: time.Now(),
	}
}

// databaseCheck pings the catalog database. The second return value is
// false when the instance should report unhealthy.
func (h *HealthController) databaseCheck() (string, bool) {
	if h.db == nil {
		return "not configured", true
	}
	if err := h.db.Ping(); err != nil {
		return "error: " + err.Error(), false
	}
	return "ok", true
}

// Status serves GET /health.
func (h *HealthController) Status(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK

	checks := make(map[string]string)
	result, ok := h.databaseCheck()
	checks["database"] = result
	if !ok {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.IndentedJSON(code, HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Version: h.version,
		Checks:  checks,
	})
}
