package domain

import "time"

// Role enumerates operator roles. Managers and admins bypass the transition
// table entirely.
type Role string

const (
	RoleAdmin      Role = "Admin"
	RoleManager    Role = "Manager"
	RoleFrontDesk  Role = "Front Desk"
	RoleTechnician Role = "Technician"
	RoleAccountant Role = "Accountant"
)

// Privileged reports whether the role may perform any transition.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleManager
}

// User models a shop operator.
type User struct {
	ID           string
	Username     string
	Email        string
	FirstName    string
	LastName     string
	Phone        string
	PasswordHash string
	Role         Role
	IsWorkshop   bool
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName joins first and last name.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Actor is the caller identity consulted by the state machine.
type Actor struct {
	ID   string
	Role Role
}
