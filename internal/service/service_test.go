package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"limit-offer-api/internal/cache"
	"limit-offer-api/internal/database"
	"limit-offer-api/internal/models"
	"limit-offer-api/internal/validation"
)

func setupTestService(t *testing.T) (*Service, *database.DB) {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewService(db), db
}

func createAccount(t *testing.T, svc *Service, accountLimit, perTxnLimit float64) int64 {
	t.Helper()

	id, err := svc.CreateAccount(context.Background(), models.CreateAccountRequest{
		CustomerID:          uuid.New().String(),
		AccountLimit:        accountLimit,
		PerTransactionLimit: perTxnLimit,
	})
	if err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	return id
}

func futureOfferRequest(accountID int64, limitType models.LimitType, newLimit float64) models.CreateOfferRequest {
	now := time.Now().UTC()
	return models.CreateOfferRequest{
		AccountID:      accountID,
		LimitType:      limitType,
		NewLimit:       newLimit,
		ActivationTime: now.Add(time.Hour).Format(time.RFC3339),
		ExpiryTime:     now.Add(2 * time.Hour).Format(time.RFC3339),
	}
}

func TestCreateAccount_InitialState(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	accountID := createAccount(t, svc, 100, 50)

	account, err := svc.GetAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("Failed to get account: %v", err)
	}

	if account.AccountLimit != 100 || account.PerTransactionLimit != 50 {
		t.Errorf("Unexpected limits: %+v", account)
	}
	if account.LastAccountLimit != 0 || account.LastPerTransactionLimit != 0 {
		t.Errorf("Expected last_* limits to initialize to 0: %+v", account)
	}
}

func TestCreateAccount_MissingFields(t *testing.T) {
	svc, _ := setupTestService(t)

	cases := []models.CreateAccountRequest{
		{CustomerID: "", AccountLimit: 100, PerTransactionLimit: 50},
		{CustomerID: "c1", AccountLimit: 0, PerTransactionLimit: 50},
		{CustomerID: "c1", AccountLimit: 100, PerTransactionLimit: 0},
	}

	for _, req := range cases {
		_, err := svc.CreateAccount(context.Background(), req)
		var validationErr *validation.ValidationError
		if !errors.As(err, &validationErr) {
			t.Errorf("Expected validation error for %+v, got %v", req, err)
		}
	}
}

func TestCreateOffer_Succeeds(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	accountID := createAccount(t, svc, 100, 50)

	offerID, err := svc.CreateOffer(ctx, futureOfferRequest(accountID, models.LimitTypeAccount, 150), time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create offer: %v", err)
	}
	if offerID <= 0 {
		t.Fatalf("Expected a positive offer id, got %d", offerID)
	}

	offers, err := svc.ListActiveOffers(ctx, accountID, nil)
	if err != nil {
		t.Fatalf("Failed to list offers: %v", err)
	}
	if len(offers) != 1 || offers[0].Status != models.OfferStatusPending {
		t.Fatalf("Expected one pending offer, got %+v", offers)
	}
}

func TestCreateOffer_NewLimitMustExceedCurrent(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	accountID := createAccount(t, svc, 100, 50)

	// 50 <= current account limit of 100
	_, err := svc.CreateOffer(ctx, futureOfferRequest(accountID, models.LimitTypeAccount, 50), time.Now().UTC())
	var validationErr *validation.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if validationErr.Field != "new_limit" {
		t.Errorf("Expected new_limit field, got %s", validationErr.Field)
	}

	// equality is rejected too
	_, err = svc.CreateOffer(ctx, futureOfferRequest(accountID, models.LimitTypeAccount, 100), time.Now().UTC())
	if !errors.As(err, &validationErr) {
		t.Fatalf("Expected validation error, got %v", err)
	}

	// no row was persisted
	offers, err := svc.ListActiveOffers(ctx, accountID, nil)
	if err != nil {
		t.Fatalf("Failed to list offers: %v", err)
	}
	if len(offers) != 0 {
		t.Fatalf("Expected no offers to be persisted, got %d", len(offers))
	}
}

func TestCreateOffer_UnknownAccount(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.CreateOffer(context.Background(), futureOfferRequest(999, models.LimitTypeAccount, 150), time.Now().UTC())

	var notFound *models.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestRedeemOffer_AcceptedScenario(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	accountID := createAccount(t, svc, 100, 50)
	offerID, err := svc.CreateOffer(ctx, futureOfferRequest(accountID, models.LimitTypeAccount, 150), time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create offer: %v", err)
	}

	if err := svc.RedeemOffer(ctx, offerID, models.OfferStatusAccepted); err != nil {
		t.Fatalf("Failed to redeem offer: %v", err)
	}

	account, err := svc.GetAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("Failed to get account: %v", err)
	}
	if account.AccountLimit != 150 || account.LastAccountLimit != 100 {
		t.Errorf("Expected account_limit 150 / last 100, got %g/%g", account.AccountLimit, account.LastAccountLimit)
	}

	// second redemption fails and leaves everything unchanged
	err = svc.RedeemOffer(ctx, offerID, models.OfferStatusRejected)
	var alreadyRedeemed *models.ErrAlreadyRedeemed
	if !errors.As(err, &alreadyRedeemed) {
		t.Fatalf("Expected ErrAlreadyRedeemed, got %v", err)
	}

	account, err = svc.GetAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("Failed to get account: %v", err)
	}
	if account.AccountLimit != 150 || account.LastAccountLimit != 100 {
		t.Errorf("Account changed after failed second redeem: %+v", account)
	}
}

func TestRedeemOffer_RejectedLeavesAccountUntouched(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	accountID := createAccount(t, svc, 100, 50)
	offerID, err := svc.CreateOffer(ctx, futureOfferRequest(accountID, models.LimitTypePerTransaction, 80), time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create offer: %v", err)
	}

	if err := svc.RedeemOffer(ctx, offerID, models.OfferStatusRejected); err != nil {
		t.Fatalf("Failed to redeem offer: %v", err)
	}

	account, err := svc.GetAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("Failed to get account: %v", err)
	}
	if account.PerTransactionLimit != 50 || account.LastPerTransactionLimit != 0 {
		t.Errorf("Account should be untouched on rejection: %+v", account)
	}
}

func TestRedeemOffer_InvalidTargetStatus(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	accountID := createAccount(t, svc, 100, 50)
	offerID, err := svc.CreateOffer(ctx, futureOfferRequest(accountID, models.LimitTypeAccount, 150), time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create offer: %v", err)
	}

	for _, status := range []models.OfferStatus{"", models.OfferStatusPending, "BOGUS"} {
		err := svc.RedeemOffer(ctx, offerID, status)
		var validationErr *validation.ValidationError
		if !errors.As(err, &validationErr) {
			t.Errorf("Expected validation error for status %q, got %v", status, err)
		}
	}
}

func TestRedeemOffer_NotFound(t *testing.T) {
	svc, _ := setupTestService(t)

	err := svc.RedeemOffer(context.Background(), 999, models.OfferStatusAccepted)

	var notFound *models.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestListActiveOffers_AsOfFilter(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	accountID := createAccount(t, svc, 100, 50)

	now := time.Now().UTC()
	req := models.CreateOfferRequest{
		AccountID:      accountID,
		LimitType:      models.LimitTypeAccount,
		NewLimit:       150,
		ActivationTime: now.Add(time.Hour).Format(time.RFC3339),
		ExpiryTime:     now.Add(2 * time.Hour).Format(time.RFC3339),
	}
	if _, err := svc.CreateOffer(ctx, req, now); err != nil {
		t.Fatalf("Failed to create offer: %v", err)
	}

	inside := now.Add(90 * time.Minute)
	offers, err := svc.ListActiveOffers(ctx, accountID, &inside)
	if err != nil {
		t.Fatalf("Failed to list offers: %v", err)
	}
	if len(offers) != 1 {
		t.Fatalf("Expected the offer to be active at %v, got %d offers", inside, len(offers))
	}

	before := now.Add(30 * time.Minute)
	offers, err = svc.ListActiveOffers(ctx, accountID, &before)
	if err != nil {
		t.Fatalf("Failed to list offers: %v", err)
	}
	if len(offers) != 0 {
		t.Fatalf("Expected no active offers before activation, got %d", len(offers))
	}
}

func TestGetAccount_CacheInvalidatedOnRedemption(t *testing.T) {
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := NewServiceWithOptions(db, Options{
		Cache:    cache.NewInMemoryCache(),
		CacheTTL: time.Minute,
	})
	ctx := context.Background()

	accountID := createAccount(t, svc, 100, 50)

	// prime the cache
	if _, err := svc.GetAccount(ctx, accountID); err != nil {
		t.Fatalf("Failed to get account: %v", err)
	}

	offerID, err := svc.CreateOffer(ctx, futureOfferRequest(accountID, models.LimitTypeAccount, 150), time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create offer: %v", err)
	}
	if err := svc.RedeemOffer(ctx, offerID, models.OfferStatusAccepted); err != nil {
		t.Fatalf("Failed to redeem offer: %v", err)
	}

	// the cached pre-redemption account must not be served
	account, err := svc.GetAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("Failed to get account: %v", err)
	}
	if account.AccountLimit != 150 {
		t.Errorf("Expected fresh account_limit 150 after redemption, got %g", account.AccountLimit)
	}
}
