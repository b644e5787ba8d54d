package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"limit-offer-api/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	// EventAccountCreated is emitted when an account is created
	EventAccountCreated EventType = "account.created"
	// EventOfferCreated is emitted when a limit offer is created
	EventOfferCreated EventType = "offer.created"
	// EventOfferRedeemed is emitted when a pending offer reaches a terminal status
	EventOfferRedeemed EventType = "offer.redeemed"
)

// Event represents an event in the system.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// AccountCreatedData contains data for account created events.
type AccountCreatedData struct {
	AccountID  int64
	CustomerID string
}

// OfferCreatedData contains data for offer created events.
type OfferCreatedData struct {
	Offer models.Offer
}

// OfferRedeemedData contains data for offer redeemed events.
type OfferRedeemedData struct {
	OfferID   int64
	AccountID int64
	LimitType models.LimitType
	Status    models.OfferStatus
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
}

// NewManager creates a new event manager.
func NewManager(enabled bool) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers. Handlers run
// asynchronously so publishing never blocks the request path.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	if !m.enabled {
		return
	}

	m.mu.RLock()
	handlers := m.handlers[eventType]
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	for _, handler := range handlers {
		go func(h Handler) {
			_ = h(ctx, event)
		}(handler)
	}
}

// PublishAccountCreated publishes an account created event.
func (m *Manager) PublishAccountCreated(ctx context.Context, accountID int64, customerID string) {
	m.Publish(ctx, EventAccountCreated, AccountCreatedData{
		AccountID:  accountID,
		CustomerID: customerID,
	})
}

// PublishOfferCreated publishes an offer created event.
func (m *Manager) PublishOfferCreated(ctx context.Context, offer models.Offer) {
	m.Publish(ctx, EventOfferCreated, OfferCreatedData{Offer: offer})
}

// PublishOfferRedeemed publishes an offer redeemed event.
func (m *Manager) PublishOfferRedeemed(ctx context.Context, offer models.Offer, status models.OfferStatus) {
	m.Publish(ctx, EventOfferRedeemed, OfferRedeemedData{
		OfferID:   offer.OfferID,
		AccountID: offer.AccountID,
		LimitType: offer.LimitType,
		Status:    status,
	})
}

// Shutdown shuts down the event manager.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
}
