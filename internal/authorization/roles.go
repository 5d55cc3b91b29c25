package authorization

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleInstructor UserRole = "instructor"
	RoleUser       UserRole = "user"
)

var validRoles = map[UserRole]struct{}{
	RoleAdmin:      {},
	RoleInstructor: {},
	RoleUser:       {},
}

func (r UserRole) String() string {
	return string(r)
}

func (r UserRole) IsValid() bool {
	_, ok := validRoles[r]
	return ok
}

func (r UserRole) Value() (driver.Value, error) {
	if r == "" {
		return string(RoleUser), nil
	}
	if !r.IsValid() {
		return nil, fmt.Errorf("invalid user role: %q", r)
	}
	return string(r), nil
}

func (r *UserRole) Scan(value interface{}) error {
	if value == nil {
		*r = RoleUser
		return nil
	}

	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("unsupported type for UserRole: %T", value)
	}

	role := UserRole(strings.ToLower(strings.TrimSpace(raw)))
	if !role.IsValid() {
		return fmt.Errorf("invalid user role: %q", raw)
	}
	*r = role
	return nil
}

type Permission string

const (
	PermissionManageCatalog   Permission = "manage_catalog"
	PermissionViewOrders      Permission = "view_orders"
	PermissionViewAnyUserData Permission = "view_any_user_data"
	PermissionBypassPaywall   Permission = "bypass_paywall"
)

var rolePermissions = map[UserRole]map[Permission]struct{}{
	RoleAdmin: {
		PermissionManageCatalog:   {},
		PermissionViewOrders:      {},
		PermissionViewAnyUserData: {},
		PermissionBypassPaywall:   {},
	},
	RoleInstructor: {
		PermissionManageCatalog: {},
	},
	RoleUser: {},
}

func RoleHasPermission(role UserRole, permission Permission) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, ok = perms[permission]
	return ok
}

func ParseUserRole(value interface{}) (UserRole, bool) {
	switch v := value.(type) {
	case UserRole:
		if !v.IsValid() {
			return "", false
		}
		return v, true
	case string:
		role := UserRole(strings.ToLower(strings.TrimSpace(v)))
		if !role.IsValid() {
			return "", false
		}
		return role, true
	default:
		return "", false
	}
}
