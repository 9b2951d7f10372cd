package models

import "time"

// Role names a row of the permission table.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Roles lists every known role in a stable order.
var Roles = []Role{RoleAdmin, RoleUser}

// User is a stored account. PasswordHash never leaves the server.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	LoginTime    *time.Time
	CreatedAt    time.Time
}

// Column names of the users collection.
const (
	UserID           = "id"
	UserUsername     = "username"
	UserPasswordHash = "password_hash"
	UserRole         = "role"
	UserLoginTime    = "login_time"
	UserCreatedAt    = "created_at"
)
