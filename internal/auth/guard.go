// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

package auth

import "github.com/samber/oops"

// Role is the privilege level an endpoint requires.
type Role int

const (
	// RoleAny admits every authenticated principal.
	RoleAny Role = iota
	// RoleModerator admits moderators and admins.
	RoleModerator
	// RoleAdmin admits admins only.
	RoleAdmin
)

// String returns the role name for logs and error context.
func (r Role) String() string {
	switch r {
	case RoleAny:
		return "any"
	case RoleModerator:
		return "moderator"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// RequireRole checks that the principal holds the required role.
// It runs strictly after authentication: a failure here means the
// caller is known but lacks privilege, which maps to 403, never 401.
func RequireRole(p *Principal, role Role) error {
	switch role {
	case RoleAny:
		return nil
	case RoleModerator:
		// Admins moderate too.
		if p.Moderator || p.Admin {
			return nil
		}
		return oops.Code("AUTH_FORBIDDEN").
			With("email", p.Email).
			With("required", role.String()).
			Errorf("not a moderator")
	case RoleAdmin:
		if p.Admin {
			return nil
		}
		return oops.Code("AUTH_FORBIDDEN").
			With("email", p.Email).
			With("required", role.String()).
			Errorf("not an admin")
	default:
		return oops.Code("AUTH_FORBIDDEN").
			With("required", int(role)).
			Errorf("unknown role requirement")
	}
}
