package models

import "time"

// LimitType selects which of an account's limit pairs an offer targets.
type LimitType string

const (
	LimitTypeAccount        LimitType = "ACCOUNT_LIMIT"
	LimitTypePerTransaction LimitType = "PER_TRANSACTION_LIMIT"
)

// Valid reports whether the limit type is one of the two recognized values.
func (lt LimitType) Valid() bool {
	return lt == LimitTypeAccount || lt == LimitTypePerTransaction
}

// OfferStatus is the lifecycle state of an offer. An offer starts PENDING and
// transitions exactly once to ACCEPTED or REJECTED.
type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "PENDING"
	OfferStatusAccepted OfferStatus = "ACCEPTED"
	OfferStatusRejected OfferStatus = "REJECTED"
)

// Terminal reports whether the status is one of the two end states a pending
// offer may be redeemed to.
func (s OfferStatus) Terminal() bool {
	return s == OfferStatusAccepted || s == OfferStatusRejected
}

// Account holds a customer's current spending limits plus a one-step audit
// trail: each last_* column holds the value the matching limit held before its
// most recent update.
type Account struct {
	AccountID                     int64     `json:"account_id"`
	CustomerID                    string    `json:"customer_id"`
	AccountLimit                  float64   `json:"account_limit"`
	PerTransactionLimit           float64   `json:"per_transaction_limit"`
	LastAccountLimit              float64   `json:"last_account_limit"`
	LastPerTransactionLimit       float64   `json:"last_per_transaction_limit"`
	AccountLimitUpdateTime        time.Time `json:"account_limit_update_time"`
	PerTransactionLimitUpdateTime time.Time `json:"per_transaction_limit_update_time"`
}

// Offer is a proposed, time-boxed increase to one of an account's limits.
// The offer is eligible for redemption during [ActivationTime, ExpiryTime).
type Offer struct {
	OfferID        int64       `json:"offer_id"`
	AccountID      int64       `json:"account_id"`
	LimitType      LimitType   `json:"limit_type"`
	NewLimit       float64     `json:"new_limit"`
	ActivationTime time.Time   `json:"offer_activation_time"`
	ExpiryTime     time.Time   `json:"offer_expiry_time"`
	Status         OfferStatus `json:"status"`
}

// CreateAccountRequest is the request body for creating an account.
type CreateAccountRequest struct {
	CustomerID          string  `json:"customer_id"`
	AccountLimit        float64 `json:"account_limit"`
	PerTransactionLimit float64 `json:"per_transaction_limit"`
}

// CreateAccountResponse carries the generated account identifier.
type CreateAccountResponse struct {
	AccountID int64 `json:"account_id"`
}

// CreateOfferRequest is the request body for creating a limit offer.
// Times are RFC3339 strings so malformed values can be rejected with a
// field-level validation error instead of a generic JSON decode failure.
type CreateOfferRequest struct {
	AccountID      int64     `json:"account_id"`
	LimitType      LimitType `json:"limit_type"`
	NewLimit       float64   `json:"new_limit"`
	ActivationTime string    `json:"offer_activation_time"`
	ExpiryTime     string    `json:"offer_expiry_time"`
}

// CreateOfferResponse carries the generated offer identifier.
type CreateOfferResponse struct {
	OfferID int64 `json:"offer_id"`
}

// RedeemOfferRequest is the request body for resolving a pending offer.
type RedeemOfferRequest struct {
	Status OfferStatus `json:"status"`
}

// RedeemOfferResponse reports the terminal status the offer was moved to.
type RedeemOfferResponse struct {
	OfferID int64       `json:"offer_id"`
	Status  OfferStatus `json:"status"`
}

// ListActiveOffersResponse is the payload for an active-offer listing.
type ListActiveOffersResponse struct {
	AccountID int64   `json:"account_id"`
	Offers    []Offer `json:"offers"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
