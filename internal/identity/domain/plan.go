package domain

import "github.com/orgstack/identity/pkg/idx"

// Plan caps what a tenant can do. Plans are seeded by migration and read-only
// at runtime.
type Plan struct {
	ID          idx.ID
	Name        string
	MaxUsers    int
	HasPayments bool
}
