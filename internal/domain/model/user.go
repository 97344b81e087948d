package model

import (
	"time"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// SuperAdminID is the account that owns the installation.
const SuperAdminID int64 = 1

// RoleFor decides the role tier of a stored user record. It is the only
// place that knows the super-admin is identified by id.
func RoleFor(id int64, admin bool) Role {
	switch {
	case id == SuperAdminID:
		return RoleSuperAdmin
	case admin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	Role           Role      `json:"role"`
	Banned         bool      `json:"banned"`
	Verified       bool      `json:"verified"`
	JoinDate       time.Time `json:"join_date"`
}

func (u *User) IsAdmin() bool {
	return u != nil && (u.Role == RoleAdmin || u.Role == RoleSuperAdmin)
}

func (u *User) IsSuperAdmin() bool {
	return u != nil && u.Role == RoleSuperAdmin
}
