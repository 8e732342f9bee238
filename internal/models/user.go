package models

import "time"

type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleSecurity   UserRole = "security"
	RoleManagement UserRole = "management"
)

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Role         UserRole   `json:"role"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Email        string     `json:"email"`
	IsActive     bool       `json:"isActive"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	PasswordHash string     `json:"passwordHash,omitempty"`
}

func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}
