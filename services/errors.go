package services

import "errors"

var (
	// ErrInvalidRequest marks input errors: a field required by the declared content type is missing.
	ErrInvalidRequest = errors.New("invalid analysis request")
	// ErrCollaboratorUnavailable is returned by clients that have no credentials configured.
	ErrCollaboratorUnavailable = errors.New("collaborator not configured")
)
