package port

import "errors"

var (
	// ErrNotFound is returned when a purchase order or line does not exist
	ErrNotFound = errors.New("not found")

	// ErrConcurrentModification is returned when the stored status changed under a writer
	ErrConcurrentModification = errors.New("purchase order was modified concurrently")

	// ErrCapabilityDenied is returned when the current status does not permit an operation
	ErrCapabilityDenied = errors.New("operation not permitted in current status")

	// ErrInvalidInput is returned for malformed requests
	ErrInvalidInput = errors.New("invalid input")
)
