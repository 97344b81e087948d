// Package policy holds the authorization rules of the platform. Every
// function is pure: callers load the users, policy only decides.
package policy

import (
	"ctf_zone/internal/common"
	"ctf_zone/internal/domain/model"
)

// LoginPath stays reachable while maintenance mode is on so admins can
// still sign in.
const LoginPath = "/api/v1/auth/login"

func CanAuthenticate(user *model.User) error {
	if user == nil {
		return common.ErrUnauthorized
	}
	if user.Banned {
		return common.Forbiddenf("Your account has been banned")
	}
	if !user.Verified {
		return common.Forbiddenf("Your account has not been verified")
	}
	return nil
}

// CanPromote guards the admin toggle. Only the super-admin grants or
// revokes, and the super-admin's own status never changes.
func CanPromote(actor, target *model.User) error {
	if !actor.IsSuperAdmin() {
		return common.Forbiddenf("Only the super-admin can change admin privileges")
	}
	if target.IsSuperAdmin() {
		return common.Forbiddenf("Cannot change the privileges of the super-admin")
	}
	return nil
}

func CanBan(actor, target *model.User) error {
	if actor == nil || target == nil {
		return common.Forbiddenf("You cannot ban this user")
	}
	if actor.ID == target.ID {
		return common.Forbiddenf("You cannot ban yourself")
	}
	if target.IsSuperAdmin() {
		return common.Forbiddenf("You cannot ban the super-admin")
	}
	if target.IsAdmin() && !actor.IsSuperAdmin() {
		return common.Forbiddenf("Only the super-admin can ban an admin")
	}
	return nil
}

func IsMaintenanceBlocked(enabled bool, actor *model.User, path string) bool {
	return enabled && path != LoginPath && !actor.IsAdmin()
}

func CanSeeDraft(actor *model.User) bool {
	return actor.IsAdmin()
}
