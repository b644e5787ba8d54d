package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"limit-offer-api/internal/cache"
	"limit-offer-api/internal/events"
	"limit-offer-api/internal/metrics"
	"limit-offer-api/internal/models"
	"limit-offer-api/internal/validation"
)

// Store is the persistence contract the workflow depends on. *database.DB
// satisfies it; tests may substitute an in-memory fake.
type Store interface {
	CreateAccount(ctx context.Context, account models.Account) (int64, error)
	GetAccountByID(ctx context.Context, accountID int64) (*models.Account, error)
	GetAccountLimit(ctx context.Context, accountID int64, limitType models.LimitType) (float64, error)
	CreateOffer(ctx context.Context, offer models.Offer) (int64, error)
	GetOfferByID(ctx context.Context, offerID int64) (*models.Offer, error)
	ListActiveOffers(ctx context.Context, accountID int64, asOf *time.Time) ([]models.Offer, error)
	RedeemOffer(ctx context.Context, offerID int64, target models.OfferStatus) error
}

// Service provides the account and offer lifecycle workflows.
type Service struct {
	store    Store
	cache    cache.Cache
	cacheTTL time.Duration
	events   *events.Manager
	metrics  *metrics.Metrics
}

// Options holds optional service collaborators.
type Options struct {
	Cache    cache.Cache
	CacheTTL time.Duration
	Events   *events.Manager
	Metrics  *metrics.Metrics
}

// NewService creates a new service instance with no cache, events or metrics.
func NewService(store Store) *Service {
	return NewServiceWithOptions(store, Options{})
}

// NewServiceWithOptions creates a new service instance with the given
// collaborators. Any of them may be nil/zero.
func NewServiceWithOptions(store Store, opts Options) *Service {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	return &Service{
		store:    store,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		events:   opts.Events,
		metrics:  opts.Metrics,
	}
}

// CreateAccount validates and persists a new account. The last_* limit fields
// start at zero and both update times start at creation time.
func (s *Service) CreateAccount(ctx context.Context, req models.CreateAccountRequest) (int64, error) {
	if err := validation.ValidateCreateAccount(req); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	account := models.Account{
		CustomerID:                    req.CustomerID,
		AccountLimit:                  req.AccountLimit,
		PerTransactionLimit:           req.PerTransactionLimit,
		LastAccountLimit:              0,
		LastPerTransactionLimit:       0,
		AccountLimitUpdateTime:        now,
		PerTransactionLimitUpdateTime: now,
	}

	accountID, err := s.store.CreateAccount(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("failed to create account: %w", err)
	}

	if s.events != nil {
		s.events.PublishAccountCreated(ctx, accountID, req.CustomerID)
	}

	return accountID, nil
}

// GetAccount returns an account, serving from the cache when possible.
func (s *Service) GetAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	if accountID <= 0 {
		return nil, &validation.ValidationError{Field: "account_id", Message: "is required"}
	}

	key := cache.AccountKey(accountID)
	if s.cache != nil {
		var cached models.Account
		if err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil {
			s.incrCacheHit("account")
			return &cached, nil
		}
		s.incrCacheMiss("account")
	}

	account, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = cache.SetJSON(ctx, s.cache, key, account, s.cacheTTL)
	}

	return account, nil
}

// CreateOffer validates a limit offer against the reference time and the
// account's current limit of the targeted type, then persists it as PENDING.
func (s *Service) CreateOffer(ctx context.Context, req models.CreateOfferRequest, now time.Time) (int64, error) {
	activation, expiry, err := validation.ValidateCreateOffer(req, now)
	if err != nil {
		return 0, err
	}

	currentLimit, err := s.store.GetAccountLimit(ctx, req.AccountID, req.LimitType)
	if err != nil {
		return 0, err
	}

	if req.NewLimit <= currentLimit {
		return 0, &validation.ValidationError{
			Field:   "new_limit",
			Message: fmt.Sprintf("must be greater than the current %s (%g)", req.LimitType, currentLimit),
		}
	}

	offer := models.Offer{
		AccountID:      req.AccountID,
		LimitType:      req.LimitType,
		NewLimit:       req.NewLimit,
		ActivationTime: activation,
		ExpiryTime:     expiry,
		Status:         models.OfferStatusPending,
	}

	offerID, err := s.store.CreateOffer(ctx, offer)
	if err != nil {
		return 0, fmt.Errorf("failed to create offer: %w", err)
	}
	offer.OfferID = offerID

	s.invalidate(ctx, cache.ActiveOffersKey(req.AccountID))

	if s.events != nil {
		s.events.PublishOfferCreated(ctx, offer)
	}

	return offerID, nil
}

// ListActiveOffers returns the PENDING offers for an account; when asOf is
// given the result is filtered to offers whose activity window contains it.
// Only the unfiltered list is cached.
func (s *Service) ListActiveOffers(ctx context.Context, accountID int64, asOf *time.Time) ([]models.Offer, error) {
	if accountID <= 0 {
		return nil, &validation.ValidationError{Field: "account_id", Message: "is required"}
	}

	key := cache.ActiveOffersKey(accountID)
	if s.cache != nil && asOf == nil {
		var cached []models.Offer
		if err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil {
			s.incrCacheHit("offers")
			return cached, nil
		}
		s.incrCacheMiss("offers")
	}

	offers, err := s.store.ListActiveOffers(ctx, accountID, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list active offers: %w", err)
	}

	if s.cache != nil && asOf == nil {
		_ = cache.SetJSON(ctx, s.cache, key, offers, s.cacheTTL)
	}

	return offers, nil
}

// RedeemOffer resolves a pending offer to ACCEPTED or REJECTED. Acceptance
// raises the owning account's targeted limit to the offer's new limit, with
// the previous value kept in the matching last_* field. A second redemption
// of the same offer fails with ErrAlreadyRedeemed and mutates nothing.
func (s *Service) RedeemOffer(ctx context.Context, offerID int64, target models.OfferStatus) error {
	if offerID <= 0 {
		return &validation.ValidationError{Field: "offer_id", Message: "is required"}
	}
	if err := validation.ValidateRedeemStatus(target); err != nil {
		return err
	}

	offer, err := s.store.GetOfferByID(ctx, offerID)
	if err != nil {
		return err
	}

	if err := s.store.RedeemOffer(ctx, offerID, target); err != nil {
		var conflict *models.ErrAlreadyRedeemed
		if errors.As(err, &conflict) {
			s.incrRedemption("conflict")
		}
		return err
	}

	switch target {
	case models.OfferStatusAccepted:
		s.incrRedemption("accepted")
	case models.OfferStatusRejected:
		s.incrRedemption("rejected")
	}

	s.invalidate(ctx, cache.AccountKey(offer.AccountID))
	s.invalidate(ctx, cache.ActiveOffersKey(offer.AccountID))

	if s.events != nil {
		s.events.PublishOfferRedeemed(ctx, *offer, target)
	}

	return nil
}

func (s *Service) invalidate(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, key)
}

func (s *Service) incrCacheHit(name string) {
	if s.metrics != nil {
		s.metrics.IncrCacheHit(name)
	}
}

func (s *Service) incrCacheMiss(name string) {
	if s.metrics != nil {
		s.metrics.IncrCacheMiss(name)
	}
}

func (s *Service) incrRedemption(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrRedemption(outcome)
	}
}
