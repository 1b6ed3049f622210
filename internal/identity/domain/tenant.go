package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/orgstack/identity/pkg/idx"
)

// Tenant is the top-level isolation boundary. Every account, token and
// credential bundle belongs to exactly one tenant.
type Tenant struct {
	ID        idx.ID
	Name      string
	Slug      string
	Industry  string
	PlanID    idx.ID
	CreatedAt time.Time
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// SlugFromName derives a URL-safe slug from a display name: lowercase,
// non-alphanumeric runs collapsed to single hyphens.
func SlugFromName(name string) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
