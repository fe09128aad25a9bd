package valueobject

import "github.com/google/uuid"

// Роли, которые приходят в access токене.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSubAdmin   = "sub_admin"
	RoleSuperAdmin = "super_admin"
)

// IsAdminRole сообщает, относится ли роль к любому уровню администраторов.
func IsAdminRole(role string) bool {
	switch role {
	case RoleAdmin, RoleSubAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Actor represents the caller of an operation.
type Actor struct {
	ID   uuid.UUID
	Role string
}

func (a Actor) IsAdmin() bool {
	return IsAdminRole(a.Role)
}
