package audit

import (
	"encoding/json"
	"time"

	zlog "github.com/rs/zerolog/log"

	"librarium/internal/database/audit"
	"librarium/internal/entities"
)

// Service provides high-level audit logging for the catalog.
type Service struct {
	repo *audit.Repository
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records a generic audit event.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	go func() {
		if err := s.repo.LogEvent(event); err != nil {
			zlog.Error().Err(err).Str("action", event.Action).Msg("failed to record audit event")
		}
	}()
}

// LogAuth records an authentication event (login, logout, register,
// token_generate, token_revoke).
func (s *Service) LogAuth(userID uint, action string, ipAddr, userAgent string, success bool) {
	event := &entities.AuditEvent{
		UserID:    userID,
		EventType: entities.AuditEventAuth,
		Action:    action,
		IPAddress: ipAddr,
		UserAgent: truncate(userAgent, 500),
		Status:    entities.AuditStatusSuccess,
	}

	if !success {
		event.Status = entities.AuditStatusFailed
	}

	s.LogAsync(event)
}

// LogCreate records the creation of a catalog entity.
func (s *Service) LogCreate(userID uint, entityType string, entityID uint, entityName, ipAddr string) {
	s.LogAsync(&entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventCreate,
		Action:      entityType + "_create",
		Description: "Created " + entityType + ": " + truncate(entityName, 200),
		EntityType:  entityType,
		EntityID:    &entityID,
		IPAddress:   ipAddr,
		Status:      entities.AuditStatusSuccess,
	})
}

// LogUpdate records a change to a catalog entity.
func (s *Service) LogUpdate(userID uint, entityType string, entityID uint, entityName, ipAddr string) {
	s.LogAsync(&entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventUpdate,
		Action:      entityType + "_update",
		Description: "Updated " + entityType + ": " + truncate(entityName, 200),
		EntityType:  entityType,
		EntityID:    &entityID,
		IPAddress:   ipAddr,
		Status:      entities.AuditStatusSuccess,
	})
}

// LogDelete records the removal of a catalog entity.
func (s *Service) LogDelete(userID uint, entityType string, entityID uint, entityName, ipAddr string) {
	s.LogAsync(&entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventDelete,
		Action:      entityType + "_delete",
		Description: "Deleted " + entityType + ": " + truncate(entityName, 200),
		EntityType:  entityType,
		EntityID:    &entityID,
		IPAddress:   ipAddr,
		Status:      entities.AuditStatusSuccess,
	})
}

// LogRoleChange records an admin changing another user's role.
func (s *Service) LogRoleChange(actorID, targetID uint, oldRole, newRole entities.UserRole, ipAddr string) {
	event := &entities.AuditEvent{
		UserID:      actorID,
		EventType:   entities.AuditEventRoleChange,
		Action:      "role_change",
		Description: "Changed role from " + string(oldRole) + " to " + string(newRole),
		EntityType:  "user",
		EntityID:    &targetID,
		IPAddress:   ipAddr,
		Status:      entities.AuditStatusSuccess,
	}

	metadata := map[string]any{
		"old_role": oldRole,
		"new_role": newRole,
	}
	if mdBytes, err := json.Marshal(metadata); err == nil {
		event.Metadata = string(mdBytes)
	}

	s.LogAsync(event)
}

// LogSecurity records a security-relevant observation, such as a request
// matching a suspicious pattern or a rejected response.
func (s *Service) LogSecurity(userID uint, action, description, ipAddr, userAgent string) {
	s.LogAsync(&entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventSecurity,
		Action:      action,
		Description: truncate(description, 500),
		IPAddress:   ipAddr,
		UserAgent:   truncate(userAgent, 500),
		Status:      entities.AuditStatusFailed,
	})
}

// LogCleanup records the outcome of a retention or orphan cleanup run.
func (s *Service) LogCleanup(action string, removed int64, err error) {
	event := &entities.AuditEvent{
		EventType: entities.AuditEventCleanup,
		Action:    action,
		Status:    entities.AuditStatusSuccess,
	}

	metadata := map[string]any{"removed": removed}
	if mdBytes, e := json.Marshal(metadata); e == nil {
		event.Metadata = string(mdBytes)
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}

	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(userID uint, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(userID, limit, offset)
}

// GetEventsByType retrieves audit events filtered by type.
func (s *Service) GetEventsByType(eventType entities.AuditEventType, userID uint, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEventsByType(eventType, userID, limit, offset)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

// CountSecurityEventsSince returns how many security events were recorded
// after the given time.
func (s *Service) CountSecurityEventsSince(since time.Time) (int64, error) {
	return s.repo.CountSince(entities.AuditEventSecurity, since)
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
