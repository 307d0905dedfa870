package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles recognised by the records API.
type UserRole string

const (
	RoleStudent UserRole = "STUDENT"
	RoleTutor   UserRole = "TUTOR"
	RoleAdmin   UserRole = "ADMIN"
)

// Reviewer reports whether the role may decide submitted records.
func (r UserRole) Reviewer() bool {
	return r == RoleTutor || r == RoleAdmin
}

// JWTClaims represents the verified identity handed to the core by the identity provider.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email,omitempty"`
	FullName string   `json:"full_name,omitempty"`
	jwt.RegisteredClaims
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
