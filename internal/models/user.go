// internal/models/user.go
package models

// Role is a user's role within the admin console.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
)

type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
