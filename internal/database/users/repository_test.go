package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"librarium/internal/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.User{})
	require.NoError(t, err)

	return db
}

func TestRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	user := &entities.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "x",
		Role:         entities.UserRoleAdmin,
	}
	require.NoError(t, repo.Create(user))
	assert.NotZero(t, user.ID)

	byID, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
	assert.Equal(t, entities.UserRoleAdmin, byID.Role)

	byName, err := repo.GetByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	_, err = repo.GetByUsername("nobody")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepository_GetByTokenHash(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	user := &entities.User{
		Username:  "alice",
		Email:     "alice@example.com",
		Role:      entities.UserRoleMember,
		TokenHash: "deadbeef",
	}
	require.NoError(t, repo.Create(user))

	got, err := repo.GetByTokenHash("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = repo.GetByTokenHash("unknown")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	for _, username := range []string{"carol", "alice", "bob"} {
		require.NoError(t, repo.Create(&entities.User{
			Username: username,
			Email:    username + "@example.com",
			Role:     entities.UserRoleMember,
		}))
	}

	users, total, err := repo.List(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, users, 3)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)

	page, total, err := repo.List(2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, "bob", page[0].Username)
}

func TestRepository_UpdateRole(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	user := &entities.User{Username: "alice", Email: "alice@example.com", Role: entities.UserRoleMember}
	require.NoError(t, repo.Create(user))

	require.NoError(t, repo.UpdateRole(user.ID, entities.UserRoleLibrarian))

	got, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.UserRoleLibrarian, got.Role)

	assert.ErrorIs(t, repo.UpdateRole(9999, entities.UserRoleAdmin), gorm.ErrRecordNotFound)
}

func TestRepository_UpdateFields(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	user := &entities.User{Username: "alice", Email: "alice@example.com", Role: entities.UserRoleMember}
	require.NoError(t, repo.Create(user))

	err := repo.UpdateFields(user.ID, map[string]any{
		"password_hash": "rehashed",
		"role":          entities.UserRoleAdmin,
	})
	require.NoError(t, err)

	got, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "rehashed", got.PasswordHash)
	assert.Equal(t, entities.UserRoleAdmin, got.Role)

	// Empty map is a no-op
	require.NoError(t, repo.UpdateFields(user.ID, nil))

	assert.ErrorIs(t, repo.UpdateFields(9999, map[string]any{"role": entities.UserRoleMember}), gorm.ErrRecordNotFound)
}

func TestRepository_CountByRole(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	seed := map[string]entities.UserRole{
		"alice": entities.UserRoleAdmin,
		"bob":   entities.UserRoleMember,
		"carol": entities.UserRoleMember,
		"dave":  entities.UserRoleLibrarian,
	}
	for username, role := range seed {
		require.NoError(t, repo.Create(&entities.User{
			Username: username,
			Email:    username + "@example.com",
			Role:     role,
		}))
	}

	counts, err := repo.CountByRole()
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[entities.UserRoleAdmin])
	assert.Equal(t, int64(1), counts[entities.UserRoleLibrarian])
	assert.Equal(t, int64(2), counts[entities.UserRoleMember])
}

func TestRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	user := &entities.User{Username: "alice", Email: "alice@example.com", Role: entities.UserRoleMember}
	require.NoError(t, repo.Create(user))

	require.NoError(t, repo.Delete(user.ID))

	_, err := repo.GetByID(user.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	assert.ErrorIs(t, repo.Delete(9999), gorm.ErrRecordNotFound)
}
