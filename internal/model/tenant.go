package model

import "time"

// Tenant is a registered tenant in the database-backed registry.
type Tenant struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
