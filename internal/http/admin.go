package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"librarium/internal/audit"
	"librarium/internal/auth"
	"librarium/internal/entities"
	"librarium/internal/tasks"
)

// AdminUserStore covers the user-management side of the admin API.
type AdminUserStore interface {
	UserCounter
	List(limit, offset int) ([]entities.User, int64, error)
}

// RoleService changes user roles with validation.
type RoleService interface {
	ChangeRole(userID uint, role entities.UserRole) (entities.UserRole, error)
}

// AdminConfig collects the dependencies of the admin API.
type AdminConfig struct {
	Users      AdminUserStore
	Roles      RoleService
	Auditor    *audit.Service
	TaskClient *tasks.Client
	Books      EntityCounter
	Authors    EntityCounter
	Libraries  EntityCounter
	Librarians EntityCounter

	// RetentionDays is the default audit retention for cleanup runs.
	RetentionDays int
}

// AdminController serves the admin-only management endpoints. All of its
// routes are registered behind a role check for admins.
type AdminController struct {
	cfg AdminConfig
}

func NewAdminController(cfg AdminConfig) *AdminController {
	return &AdminController{cfg: cfg}
}

// ListUsers returns registered users, most recent first.
// GET /api/admin/users?limit=&offset=
func (ac *AdminController) ListUsers(c *gin.Context) {
	limit, offset := parsePagination(c)

	results, total, err := ac.cfg.Users.List(limit, offset)
	if err != nil {
		respondInternalError(c, err, "list users")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   total,
		"results": results,
	})
}

type roleChangeRequest struct {
	Role entities.UserRole `json:"role" binding:"required"`
}

// ChangeUserRole assigns a new role to a user. An admin who demotes their
// own account can be restored with the create-admin command.
// PATCH /api/admin/users/:id/role
func (ac *AdminController) ChangeUserRole(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req roleChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, bindErrorMessage(err))
		return
	}

	if ac.cfg.Roles == nil {
		respondError(c, http.StatusServiceUnavailable, "authentication disabled")
		return
	}

	previous, err := ac.cfg.Roles.ChangeRole(id, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidRole):
			respondBadRequest(c, "invalid role")
		case errors.Is(err, auth.ErrUserNotFound):
			respondNotFound(c, "user")
		default:
			respondInternalError(c, err, "change role")
		}
		return
	}

	if ac.cfg.Auditor != nil {
		ac.cfg.Auditor.LogRoleChange(GetUserID(c), id, previous, req.Role, c.ClientIP())
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":  id,
		"old_role": previous,
		"new_role": req.Role,
	})
}

// AuditEvents returns the audit log, most recent first, optionally filtered
// by event type and user.
// GET /api/admin/audit?page=&limit=&type=&user_id=
func (ac *AdminController) AuditEvents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > MaxPageLimit {
		limit = DefaultPageLimit
	}

	userID, ok := parseOptionalQueryID(c, "user_id")
	if !ok {
		return
	}

	eventType := c.Query("type")
	offset := (page - 1) * limit

	var events []entities.AuditEvent
	var total int64
	var err error

	if eventType != "" {
		events, total, err = ac.cfg.Auditor.GetEventsByType(entities.AuditEventType(eventType), userID, limit, offset)
	} else {
		events, total, err = ac.cfg.Auditor.GetEvents(userID, limit, offset)
	}
	if err != nil {
		respondInternalError(c, err, "load audit events")
		return
	}

	totalPages := (int(total) + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	c.JSON(http.StatusOK, gin.H{
		"events":       events,
		"page":         page,
		"limit":        limit,
		"total_pages":  totalPages,
		"total_events": total,
	})
}

type auditCleanupRequest struct {
	RetentionDays int `json:"retention_days" binding:"omitempty,gte=1"`
}

// RunAuditCleanup enqueues a retention cleanup of the audit log.
// POST /api/admin/audit/cleanup
func (ac *AdminController) RunAuditCleanup(c *gin.Context) {
	if ac.cfg.TaskClient == nil {
		respondError(c, http.StatusServiceUnavailable, "task queue disabled")
		return
	}

	var req auditCleanupRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, bindErrorMessage(err))
			return
		}
	}

	days := req.RetentionDays
	if days <= 0 {
		days = ac.cfg.RetentionDays
	}

	ids, err := ac.cfg.TaskClient.Add(tasks.CleanupAuditTask{RetentionDays: days}).Save()
	if err != nil {
		respondInternalError(c, err, "enqueue audit cleanup")
		return
	}

	respondAccepted(c, "audit cleanup enqueued", gin.H{
		"task_id":        ids[0],
		"retention_days": days,
	})
}

// Stats summarizes the whole installation for the admin overview.
// GET /api/admin/stats
func (ac *AdminController) Stats(c *gin.Context) {
	totalUsers, err := ac.cfg.Users.Count()
	if err != nil {
		respondInternalError(c, err, "admin stats")
		return
	}
	byRole, err := ac.cfg.Users.CountByRole()
	if err != nil {
		respondInternalError(c, err, "admin stats")
		return
	}

	counts := make(gin.H, 4)
	for name, counter := range map[string]EntityCounter{
		"books":      ac.cfg.Books,
		"authors":    ac.cfg.Authors,
		"libraries":  ac.cfg.Libraries,
		"librarians": ac.cfg.Librarians,
	} {
		n, err := counter.CountAll()
		if err != nil {
			respondInternalError(c, err, "admin stats")
			return
		}
		counts[name] = n
	}

	securityEvents, err := ac.cfg.Auditor.CountSecurityEventsSince(time.Now().Add(-24 * time.Hour))
	if err != nil {
		respondInternalError(c, err, "admin stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": gin.H{
			"total":   totalUsers,
			"by_role": byRole,
		},
		"catalog":             counts,
		"security_events_24h": securityEvents,
	})
}
