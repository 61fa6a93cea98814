// Package authz provides authorization decisions for session actions.
package authz

import "strings"

// Role identifies an actor's platform role.
type Role string

const (
	RoleClient     Role = "client"
	RoleReader     Role = "reader"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Permission names an action an actor may be granted.
type Permission string

const (
	// PermissionDrawCards allows drawing cards into slots.
	PermissionDrawCards Permission = "draw_cards"
	// PermissionViewRevealed allows revealing drawn cards.
	PermissionViewRevealed Permission = "view_revealed"
	// PermissionBurnCards allows burning unrevealed slots.
	PermissionBurnCards Permission = "burn_cards"
	// PermissionBurnRevealedOverride allows burning a slot that is already revealed.
	PermissionBurnRevealedOverride Permission = "burn_revealed_override"
	// PermissionManualPositionAssignment allows supplying freeform slot geometry.
	PermissionManualPositionAssignment Permission = "manual_position_assignment"
	// PermissionStopDrawing allows ending the drawing phase with slots unfilled.
	PermissionStopDrawing Permission = "stop_drawing"
	// PermissionManageSession allows lifecycle transitions (create, advance, complete, cancel).
	PermissionManageSession Permission = "manage_session"
	// PermissionFullAccess satisfies any permission check. Held by super_admin.
	PermissionFullAccess Permission = "full_access"
)

// RoleFromString parses a lowercase role name. Unknown names map to the empty
// role, which holds no permissions.
func RoleFromString(value string) Role {
	switch strings.TrimSpace(value) {
	case "client":
		return RoleClient
	case "reader":
		return RoleReader
	case "admin":
		return RoleAdmin
	case "super_admin":
		return RoleSuperAdmin
	default:
		return ""
	}
}

// grants is the static (role, permission) table. Loaded once, never mutated.
// Unknown pairs default to deny.
var grants = map[Role]map[Permission]bool{
	RoleClient: {
		PermissionDrawCards:    true,
		PermissionViewRevealed: true,
	},
	RoleReader: {
		PermissionDrawCards:                true,
		PermissionViewRevealed:             true,
		PermissionBurnCards:                true,
		PermissionManualPositionAssignment: true,
		PermissionStopDrawing:              true,
		PermissionManageSession:            true,
	},
	RoleAdmin: {
		PermissionDrawCards:                true,
		PermissionViewRevealed:             true,
		PermissionBurnCards:                true,
		PermissionBurnRevealedOverride:     true,
		PermissionManualPositionAssignment: true,
		PermissionStopDrawing:              true,
		PermissionManageSession:            true,
	},
	RoleSuperAdmin: {
		PermissionFullAccess: true,
	},
}

// Can reports whether the role holds the permission.
//
// super_admin holds full_access, which satisfies any check.
func Can(role Role, permission Permission) bool {
	table, ok := grants[role]
	if !ok {
		return false
	}
	if table[PermissionFullAccess] {
		return true
	}
	return table[permission]
}

// CanAny reports whether the role holds at least one of the permissions.
func CanAny(role Role, permissions ...Permission) bool {
	for _, permission := range permissions {
		if Can(role, permission) {
			return true
		}
	}
	return false
}
