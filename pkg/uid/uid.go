// Package uid generates the client-side identifiers this agent lives on:
// sale IDs minted before any network attempt, queued operation IDs, and
// request IDs. They must be unique without coordination, since the backend
// may be unreachable at mint time.
package uid

import "github.com/google/uuid"

// New generates a new unique identifier.
func New() string {
	return uuid.New().String()
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
