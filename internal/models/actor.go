package models

import "github.com/google/uuid"

// Actor identifies the user performing an operation. It is resolved per call
// from the caller's credentials and never persisted by the engine.
type Actor struct {
	ID           uuid.UUID `json:"id"`
	Role         string    `json:"role"`
	DepartmentID uuid.UUID `json:"departmentId"`
}

// Role constants
const (
	RoleAdmin             = "ADMIN"
	RoleITAdmin           = "IT_ADMIN"
	RoleFinanceAdmin      = "FINANCE_ADMIN"
	RolePurchasingAdmin   = "PURCHASING_ADMIN"
	RoleDepartmentManager = "DEPARTMENT_MANAGER"
	RoleStandardUser      = "STANDARD_USER"
)

// ValidRole reports whether role is a known role value
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleITAdmin, RoleFinanceAdmin, RolePurchasingAdmin,
		RoleDepartmentManager, RoleStandardUser:
		return true
	}
	return false
}
