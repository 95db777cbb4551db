package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the caller roles recognised by the attendance API.
// Tokens are issued by the external identity service; this core only reads
// the role to decide whether the caller may act for a given student.
type UserRole string

const (
	RoleAdmin       UserRole = "ADMIN"
	RoleCoordinator UserRole = "COORDINATOR"
	RoleStudent     UserRole = "STUDENT"
)

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	StudentID string   `json:"student_id,omitempty"`
	Role      UserRole `json:"role"`
	jwt.RegisteredClaims
}

// CanActFor reports whether the caller may clock in/out on behalf of the
// given student. Students act only for themselves; coordinators and admins
// are authorized proxies.
func (c *JWTClaims) CanActFor(studentID string) bool {
	if c == nil {
		return false
	}
	switch c.Role {
	case RoleAdmin, RoleCoordinator:
		return true
	case RoleStudent:
		return c.StudentID == studentID
	default:
		return false
	}
}
