package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarium/internal/database"
	"librarium/internal/database/users"
	"librarium/internal/entities"
)

func TestCreateAdminCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	t.Run("requires a username", func(t *testing.T) {
		cmd := NewCreateAdminCommand()
		err := cmd.ParseFlags([]string{"-db", dbPath})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "-username")
	})

	t.Run("creates a fresh administrator", func(t *testing.T) {
		cmd := NewCreateAdminCommand()
		require.NoError(t, cmd.ParseFlags([]string{
			"-db", dbPath,
			"-username", "admin",
			"-email", "admin@example.com",
			"-password", "s3cret-pass",
		}))
		require.NoError(t, cmd.Run())

		db, err := database.NewDatabase(dbPath)
		require.NoError(t, err)
		defer db.Close()

		user, err := users.NewRepository(db.DB).GetByUsername("admin")
		require.NoError(t, err)
		assert.Equal(t, entities.UserRoleAdmin, user.Role)
		assert.NotEmpty(t, user.PasswordHash)
		assert.NotEqual(t, "s3cret-pass", user.PasswordHash)
	})

	t.Run("refuses to create without email or password", func(t *testing.T) {
		cmd := NewCreateAdminCommand()
		require.NoError(t, cmd.ParseFlags([]string{"-db", dbPath, "-username", "other"}))
		err := cmd.Run()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "-email")
	})

	t.Run("promotes an existing member", func(t *testing.T) {
		db, err := database.NewDatabase(dbPath)
		require.NoError(t, err)
		userRepo := users.NewRepository(db.DB)
		require.NoError(t, userRepo.Create(&entities.User{
			Username:     "alice",
			Email:        "alice@example.com",
			PasswordHash: "x",
			Role:         entities.UserRoleMember,
		}))
		require.NoError(t, db.Close())

		cmd := NewCreateAdminCommand()
		require.NoError(t, cmd.ParseFlags([]string{"-db", dbPath, "-username", "alice"}))
		require.NoError(t, cmd.Run())

		db, err = database.NewDatabase(dbPath)
		require.NoError(t, err)
		defer db.Close()

		user, err := users.NewRepository(db.DB).GetByUsername("alice")
		require.NoError(t, err)
		assert.Equal(t, entities.UserRoleAdmin, user.Role)
	})

	t.Run("promoting an admin twice is harmless", func(t *testing.T) {
		cmd := NewCreateAdminCommand()
		require.NoError(t, cmd.ParseFlags([]string{"-db", dbPath, "-username", "admin"}))
		require.NoError(t, cmd.Run())
	})
}
