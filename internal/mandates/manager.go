package mandates

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrNotActive indicates a mandate cannot be resolved for a charge.
	ErrNotActive = errors.New("mandate not active")
	// ErrNotPending indicates promotion was attempted out of order.
	ErrNotPending = errors.New("mandate not pending")
	// ErrNotFound indicates the mandate id is unknown.
	ErrNotFound = errors.New("mandate not found")
	// ErrTerminal indicates the mandate is revoked or expired.
	ErrTerminal = errors.New("mandate is terminal")
)

// Manager owns the mandate lifecycle: created PENDING during a
// customer-present confirmation, promoted to ACTIVE when the originating
// transaction authorizes, resolved into a connector token for later
// merchant-initiated charges.
type Manager struct {
	store *Store
	log   zerolog.Logger
}

// NewManager returns a Manager over the given store.
func NewManager(store *Store, log zerolog.Logger) *Manager {
	return &Manager{store: store, log: log}
}

// CreatePending registers a new PENDING mandate for a confirmation that
// requested instrument storage. The instrument token is bound at promotion.
func (m *Manager) CreatePending(ctx context.Context, customerID, originTransactionID string, constraints Constraints) (*Mandate, error) {
	mandate := Mandate{
		MandateID:           "man_" + uuid.NewString(),
		CustomerID:          customerID,
		Status:              StatusPending,
		OriginTransactionID: originTransactionID,
		Constraints:         constraints,
	}
	if err := m.store.Create(ctx, mandate); err != nil {
		return nil, fmt.Errorf("create pending mandate: %w", err)
	}
	m.log.Info().
		Str("mandate_id", mandate.MandateID).
		Str("transaction_id", originTransactionID).
		Msg("mandate created pending")
	return &mandate, nil
}

// Promote transitions PENDING -> ACTIVE, binding the connector-issued
// reusable token. Called synchronously from the confirmation (or redirect
// completion) that authorized the originating transaction.
func (m *Manager) Promote(ctx context.Context, mandateID, instrumentToken string) error {
	mandate, err := m.store.Get(ctx, mandateID)
	if err != nil {
		return err
	}
	if mandate == nil {
		return ErrNotFound
	}
	if mandate.Status != StatusPending {
		return fmt.Errorf("%w: status is %s", ErrNotPending, mandate.Status)
	}

	mandate.Status = StatusActive
	mandate.InstrumentToken = instrumentToken
	if err := m.store.Update(ctx, mandate); err != nil {
		return fmt.Errorf("promote mandate %s: %w", mandateID, err)
	}
	m.log.Info().Str("mandate_id", mandateID).Msg("mandate promoted to active")
	return nil
}

// Resolve returns the instrument token for an ACTIVE mandate. The token is
// opaque and connector-scoped; raw instrument data is never exposed.
func (m *Manager) Resolve(ctx context.Context, mandateID string) (string, error) {
	mandate, err := m.store.Get(ctx, mandateID)
	if err != nil {
		return "", err
	}
	if mandate == nil {
		return "", ErrNotFound
	}
	if mandate.Status != StatusActive {
		return "", fmt.Errorf("%w: status is %s", ErrNotActive, mandate.Status)
	}
	return mandate.InstrumentToken, nil
}

// Revoke transitions a mandate to REVOKED from any non-terminal status.
// Revoking an already-revoked mandate is a no-op success; an expired mandate
// cannot be revoked.
func (m *Manager) Revoke(ctx context.Context, mandateID string) error {
	mandate, err := m.store.Get(ctx, mandateID)
	if err != nil {
		return err
	}
	if mandate == nil {
		return ErrNotFound
	}
	if mandate.Status == StatusRevoked {
		return nil
	}
	if mandate.Status == StatusExpired {
		return fmt.Errorf("%w: status is %s", ErrTerminal, mandate.Status)
	}

	mandate.Status = StatusRevoked
	if err := m.store.Update(ctx, mandate); err != nil {
		return fmt.Errorf("revoke mandate %s: %w", mandateID, err)
	}
	m.log.Info().Str("mandate_id", mandateID).Msg("mandate revoked")
	return nil
}

// Get returns the mandate record for the read path.
func (m *Manager) Get(ctx context.Context, mandateID string) (*Mandate, error) {
	mandate, err := m.store.Get(ctx, mandateID)
	if err != nil {
		return nil, err
	}
	if mandate == nil {
		return nil, ErrNotFound
	}
	return mandate, nil
}
