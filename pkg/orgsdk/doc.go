// Package orgsdk holds the typed request/response contracts for the identity
// service and a small HTTP client for them. Handlers marshal these types, so
// the wire format is defined in exactly one place; the integration tests use
// the client against an httptest server to exercise the real router.
package orgsdk
