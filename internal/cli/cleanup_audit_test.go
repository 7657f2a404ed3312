package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarium/internal/database"
	auditdb "librarium/internal/database/audit"
	"librarium/internal/entities"
)

func TestCleanupAuditCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)

	// One stale event, one fresh. CreatedAt is set explicitly to backdate.
	require.NoError(t, db.DB.Create(&entities.AuditEvent{
		EventType: entities.AuditEventAuth,
		Action:    "login",
		Status:    entities.AuditStatusSuccess,
		CreatedAt: time.Now().Add(-40 * 24 * time.Hour),
	}).Error)
	require.NoError(t, db.DB.Create(&entities.AuditEvent{
		EventType: entities.AuditEventCreate,
		Action:    "book_create",
		Status:    entities.AuditStatusSuccess,
	}).Error)
	require.NoError(t, db.Close())

	cmd := NewCleanupAuditCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-db", dbPath, "-days", "30"}))
	require.NoError(t, cmd.Run())

	db, err = database.NewDatabase(dbPath)
	require.NoError(t, err)
	defer db.Close()

	events, total, err := auditdb.NewRepository(db.DB).GetEvents(0, 10, 0)
	require.NoError(t, err)

	// The stale login is gone; the fresh event and the cleanup record remain.
	assert.Equal(t, int64(2), total)
	actions := make([]string, len(events))
	for i, e := range events {
		actions[i] = e.Action
	}
	assert.Contains(t, actions, "book_create")
	assert.Contains(t, actions, "cleanup_audit")
	assert.NotContains(t, actions, "login")
}

func TestCleanupAuditCommandFlags(t *testing.T) {
	t.Run("defaults to the configured retention", func(t *testing.T) {
		cmd := NewCleanupAuditCommand()
		require.NoError(t, cmd.ParseFlags(nil))
		assert.Equal(t, 30, cmd.Days)
	})

	t.Run("rejects a negative retention", func(t *testing.T) {
		cmd := NewCleanupAuditCommand()
		err := cmd.ParseFlags([]string{"-days", "-3"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "positive")
	})
}
