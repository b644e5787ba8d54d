package models

import "fmt"

// Typed errors for the workflow error taxonomy. Handlers map these to HTTP
// status codes with errors.As; everything else is treated as a persistence
// failure.

// ErrNotFound indicates a referenced account or offer does not exist.
type ErrNotFound struct {
	Resource string
	ID       int64
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Resource, e.ID)
}

// ErrAlreadyRedeemed indicates an offer was not PENDING at redemption time.
type ErrAlreadyRedeemed struct {
	OfferID int64
}

func (e *ErrAlreadyRedeemed) Error() string {
	return fmt.Sprintf("offer %d has already been redeemed", e.OfferID)
}

// ErrInvalidLimitType indicates an unrecognized limit type reached the
// workflow. Unreachable with validated input.
type ErrInvalidLimitType struct {
	Value string
}

func (e *ErrInvalidLimitType) Error() string {
	return fmt.Sprintf("invalid limit type: %q", e.Value)
}
