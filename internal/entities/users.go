package entities

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	UserRoleAdmin     UserRole = "admin"
	UserRoleLibrarian UserRole = "librarian"
	UserRoleMember    UserRole = "member"
)

// Permission names a single catalog action a role may perform.
type Permission string

const (
	PermissionView   Permission = "can_view"
	PermissionCreate Permission = "can_create"
	PermissionEdit   Permission = "can_edit"
	PermissionDelete Permission = "can_delete"
)

// rolePermissions maps each role to its allowed catalog actions.
// Members browse, librarians curate the catalog, admins also delete.
var rolePermissions = map[UserRole]map[Permission]bool{
	UserRoleMember: {
		PermissionView: true,
	},
	UserRoleLibrarian: {
		PermissionView:   true,
		PermissionCreate: true,
		PermissionEdit:   true,
	},
	UserRoleAdmin: {
		PermissionView:   true,
		PermissionCreate: true,
		PermissionEdit:   true,
		PermissionDelete: true,
	},
}

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleLibrarian, UserRoleMember:
		return true
	}
	return false
}

// Can reports whether the role grants the given permission.
func (r UserRole) Can(p Permission) bool {
	return rolePermissions[r][p]
}

// Permissions returns the permissions granted to the role, in a stable order.
func (r UserRole) Permissions() []Permission {
	all := []Permission{PermissionView, PermissionCreate, PermissionEdit, PermissionDelete}
	granted := make([]Permission, 0, len(all))
	for _, p := range all {
		if r.Can(p) {
			granted = append(granted, p)
		}
	}
	return granted
}

type User struct {
	ID           uint     `gorm:"primaryKey" json:"id"`
	Username     string   `gorm:"uniqueIndex;size:100" json:"username"`
	Email        string   `gorm:"uniqueIndex;size:255" json:"email"`
	PasswordHash string   `gorm:"size:255" json:"-"`
	Role         UserRole `gorm:"size:20;default:'member';index" json:"role"`

	// Profile extras
	DateOfBirth  *time.Time `json:"date_of_birth,omitempty"`
	ProfilePhoto string     `gorm:"size:1024" json:"profile_photo,omitempty"`

	// API token (only the SHA-256 hash is stored; plaintext is shown once)
	TokenHash      string     `gorm:"index;size:64" json:"-"`
	TokenCreatedAt *time.Time `json:"-"`

	// Login tracking and lockout
	FailedLoginCount int        `gorm:"default:0" json:"-"`
	LockedUntil      *time.Time `json:"-"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// Can reports whether the user's role grants the given permission.
func (u *User) Can(p Permission) bool {
	return u.Role.Can(p)
}

// Age returns the user's age in whole years, or 0 when no birth date is set.
func (u *User) Age() int {
	if u.DateOfBirth == nil {
		return 0
	}
	now := time.Now()
	years := now.Year() - u.DateOfBirth.Year()
	if now.YearDay() < u.DateOfBirth.YearDay() {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
