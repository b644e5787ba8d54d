package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"limit-offer-api/internal/models"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ValidateCreateOffer checks the pure creation constraints of a limit offer
// against the given reference time and returns the parsed activation and
// expiry times. The account-relative constraint (new limit must exceed the
// account's current limit of the targeted type) is checked separately against
// the persistence gateway.
func ValidateCreateOffer(req models.CreateOfferRequest, now time.Time) (activation, expiry time.Time, err error) {
	if req.AccountID <= 0 {
		return time.Time{}, time.Time{}, &ValidationError{
			Field:   "account_id",
			Message: "is required",
		}
	}

	if req.LimitType == "" {
		return time.Time{}, time.Time{}, &ValidationError{
			Field:   "limit_type",
			Message: "is required",
		}
	}

	if !req.LimitType.Valid() {
		return time.Time{}, time.Time{}, &ValidationError{
			Field:   "limit_type",
			Message: "must be either ACCOUNT_LIMIT or PER_TRANSACTION_LIMIT",
		}
	}

	if req.NewLimit <= 0 {
		return time.Time{}, time.Time{}, &ValidationError{
			Field:   "new_limit",
			Message: "is required and must be positive",
		}
	}

	activation, err = ValidateTimeString(req.ActivationTime, "offer_activation_time")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	expiry, err = ValidateTimeString(req.ExpiryTime, "offer_expiry_time")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	if !activation.After(now) {
		return time.Time{}, time.Time{}, &ValidationError{
			Field:   "offer_activation_time",
			Message: "must be a valid future date",
		}
	}

	if !expiry.After(now) {
		return time.Time{}, time.Time{}, &ValidationError{
			Field:   "offer_expiry_time",
			Message: "must be a valid future date",
		}
	}

	if !expiry.After(activation) {
		return time.Time{}, time.Time{}, &ValidationError{
			Field:   "offer_expiry_time",
			Message: "must be after offer_activation_time",
		}
	}

	return activation, expiry, nil
}

// ValidateCreateAccount checks the required fields of an account creation
// request.
func ValidateCreateAccount(req models.CreateAccountRequest) error {
	if strings.TrimSpace(req.CustomerID) == "" {
		return &ValidationError{
			Field:   "customer_id",
			Message: "is required",
		}
	}

	if req.AccountLimit <= 0 {
		return &ValidationError{
			Field:   "account_limit",
			Message: "is required and must be positive",
		}
	}

	if req.PerTransactionLimit <= 0 {
		return &ValidationError{
			Field:   "per_transaction_limit",
			Message: "is required and must be positive",
		}
	}

	return nil
}

// ValidateRedeemStatus checks that the requested target status is one of the
// two terminal states.
func ValidateRedeemStatus(status models.OfferStatus) error {
	if status == "" {
		return &ValidationError{
			Field:   "status",
			Message: "is required",
		}
	}

	if !status.Terminal() {
		return &ValidationError{
			Field:   "status",
			Message: "must be either ACCEPTED or REJECTED",
		}
	}

	return nil
}

func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

func ValidateTimeString(timeStr, fieldName string) (time.Time, error) {
	if timeStr == "" {
		return time.Time{}, &ValidationError{
			Field:   fieldName,
			Message: "is required",
		}
	}

	t, err := time.Parse(time.RFC3339, SanitizeString(timeStr))
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   fieldName,
			Message: "must be a valid RFC3339 timestamp",
		}
	}

	return t, nil
}
