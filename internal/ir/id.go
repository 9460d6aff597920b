package ir

import "github.com/google/uuid"

// NewID returns a fresh time-based identifier for variables, resources,
// headers and requests.
func NewID() string {
	id, err := uuid.NewUUID()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
