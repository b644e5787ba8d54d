package validation

import (
	"errors"
	"testing"
	"time"

	"limit-offer-api/internal/models"
)

var testNow = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func validOfferRequest() models.CreateOfferRequest {
	return models.CreateOfferRequest{
		AccountID:      1,
		LimitType:      models.LimitTypeAccount,
		NewLimit:       150,
		ActivationTime: testNow.Add(time.Hour).Format(time.RFC3339),
		ExpiryTime:     testNow.Add(2 * time.Hour).Format(time.RFC3339),
	}
}

func TestValidateCreateOffer_Valid(t *testing.T) {
	activation, expiry, err := ValidateCreateOffer(validOfferRequest(), testNow)
	if err != nil {
		t.Fatalf("Expected valid request, got %v", err)
	}
	if !expiry.After(activation) {
		t.Errorf("Expected parsed expiry after activation, got %v / %v", activation, expiry)
	}
}

func TestValidateCreateOffer_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.CreateOfferRequest)
		field  string
	}{
		{
			name:   "missing account id",
			mutate: func(r *models.CreateOfferRequest) { r.AccountID = 0 },
			field:  "account_id",
		},
		{
			name:   "missing limit type",
			mutate: func(r *models.CreateOfferRequest) { r.LimitType = "" },
			field:  "limit_type",
		},
		{
			name:   "unrecognized limit type",
			mutate: func(r *models.CreateOfferRequest) { r.LimitType = "DAILY_LIMIT" },
			field:  "limit_type",
		},
		{
			name:   "missing new limit",
			mutate: func(r *models.CreateOfferRequest) { r.NewLimit = 0 },
			field:  "new_limit",
		},
		{
			name:   "missing activation time",
			mutate: func(r *models.CreateOfferRequest) { r.ActivationTime = "" },
			field:  "offer_activation_time",
		},
		{
			name:   "malformed activation time",
			mutate: func(r *models.CreateOfferRequest) { r.ActivationTime = "tomorrow" },
			field:  "offer_activation_time",
		},
		{
			name:   "activation in the past",
			mutate: func(r *models.CreateOfferRequest) { r.ActivationTime = testNow.Add(-time.Hour).Format(time.RFC3339) },
			field:  "offer_activation_time",
		},
		{
			name:   "activation equals now",
			mutate: func(r *models.CreateOfferRequest) { r.ActivationTime = testNow.Format(time.RFC3339) },
			field:  "offer_activation_time",
		},
		{
			name:   "malformed expiry time",
			mutate: func(r *models.CreateOfferRequest) { r.ExpiryTime = "2026-13-45" },
			field:  "offer_expiry_time",
		},
		{
			name:   "expiry in the past",
			mutate: func(r *models.CreateOfferRequest) { r.ExpiryTime = testNow.Add(-time.Hour).Format(time.RFC3339) },
			field:  "offer_expiry_time",
		},
		{
			name: "expiry before activation",
			mutate: func(r *models.CreateOfferRequest) {
				r.ActivationTime = testNow.Add(2 * time.Hour).Format(time.RFC3339)
				r.ExpiryTime = testNow.Add(time.Hour).Format(time.RFC3339)
			},
			field: "offer_expiry_time",
		},
		{
			name: "expiry equals activation",
			mutate: func(r *models.CreateOfferRequest) {
				r.ExpiryTime = r.ActivationTime
			},
			field: "offer_expiry_time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validOfferRequest()
			tt.mutate(&req)

			_, _, err := ValidateCreateOffer(req, testNow)

			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if validationErr.Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, validationErr.Field)
			}
		})
	}
}

func TestValidateRedeemStatus(t *testing.T) {
	if err := ValidateRedeemStatus(models.OfferStatusAccepted); err != nil {
		t.Errorf("ACCEPTED should be a valid target: %v", err)
	}
	if err := ValidateRedeemStatus(models.OfferStatusRejected); err != nil {
		t.Errorf("REJECTED should be a valid target: %v", err)
	}

	for _, status := range []models.OfferStatus{"", models.OfferStatusPending, "CANCELLED"} {
		if err := ValidateRedeemStatus(status); err == nil {
			t.Errorf("Expected %q to be rejected as a redemption target", status)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	got := SanitizeString("  2026-01-10T12:00:00Z\x00\x1b  ")
	if got != "2026-01-10T12:00:00Z" {
		t.Errorf("Unexpected sanitized value: %q", got)
	}
}
