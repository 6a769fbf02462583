package rbac

import "time"

// Role groups capabilities granted to staff accounts.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Capability is a named permission such as "fees:write".
type Capability struct {
	ID          int64
	Name        string
	Description string
}
