package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openfloat/go-payment-switch/internal/aws"
	"github.com/openfloat/go-payment-switch/internal/connector"
	"github.com/openfloat/go-payment-switch/internal/idempotency"
	"github.com/openfloat/go-payment-switch/internal/mandates"
	"github.com/openfloat/go-payment-switch/internal/redirects"
)

// ReconciliationEnqueuer hands a transaction to the background worker after
// an ambiguous connector outcome.
type ReconciliationEnqueuer interface {
	EnqueueReconciliation(ctx context.Context, msg aws.ReconciliationMessage) error
}

// TransitionRecorder emits a metric per committed state transition.
// Implementations must be best-effort and non-blocking for the caller.
type TransitionRecorder interface {
	RecordTransition(ctx context.Context, connectorName, status string)
}

// Deps groups everything the engine needs.
type Deps struct {
	Store            *Store
	Mandates         *mandates.Manager
	Registry         *connector.Registry
	Redirects        redirects.StateStore
	Queue            ReconciliationEnqueuer
	Metrics          TransitionRecorder
	Log              zerolog.Logger
	IdempotencyTable string
	IdempotencyTTL   time.Duration
	ConnectorTimeout time.Duration
	Freshness        time.Duration
}

// Engine drives the transaction lifecycle. It is the single writer for
// transaction records: every mutation goes through a version-guarded store
// write, so concurrent operations on the same transaction lose with
// ErrConcurrentModification instead of clobbering each other.
type Engine struct {
	store            *Store
	mandates         *mandates.Manager
	registry         *connector.Registry
	redirects        redirects.StateStore
	queue            ReconciliationEnqueuer
	metrics          TransitionRecorder
	log              zerolog.Logger
	idempotencyTable string
	idempotencyTTL   time.Duration
	connectorTimeout time.Duration
	freshness        time.Duration
	nowFunc          func() time.Time
}

// NewEngine wires an Engine from its dependencies.
func NewEngine(d Deps) *Engine {
	return &Engine{
		store:            d.Store,
		mandates:         d.Mandates,
		registry:         d.Registry,
		redirects:        d.Redirects,
		queue:            d.Queue,
		metrics:          d.Metrics,
		log:              d.Log,
		idempotencyTable: d.IdempotencyTable,
		idempotencyTTL:   d.IdempotencyTTL,
		connectorTimeout: d.ConnectorTimeout,
		freshness:        d.Freshness,
		nowFunc:          time.Now,
	}
}

// CreateIntentParams carries everything needed to open a transaction.
// ConnectorName arrives from the upstream routing decision.
type CreateIntentParams struct {
	IdempotencyKey string
	ConnectorName  string
	CustomerID     string
	Amount         int64
	Currency       string
	CaptureMode    string
	MandateIntent  string
	MandateID      string
}

// CreateIntent validates the request, snapshots the connector's capability
// descriptor and persists a transaction in INTENT_CREATED. When an
// idempotency key is supplied, the idempotency record and the transaction
// are created in one DynamoDB transaction.
func (e *Engine) CreateIntent(ctx context.Context, p CreateIntentParams) (*Transaction, error) {
	if p.Amount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, p.Amount)
	}
	currency := strings.ToUpper(p.Currency)
	if !CurrencyRecognized(currency) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, p.Currency)
	}

	_, caps, err := e.registry.Lookup(p.ConnectorName)
	if err != nil {
		return nil, err
	}

	captureMode := strings.ToUpper(p.CaptureMode)
	if captureMode == "" {
		captureMode = CaptureAutomatic
	}
	if captureMode != CaptureAutomatic && captureMode != CaptureManual {
		return nil, fmt.Errorf("%w: unknown capture mode %q", ErrInvalidState, p.CaptureMode)
	}
	if captureMode == CaptureManual && !caps.ManualCaptureSupported {
		return nil, fmt.Errorf("%w: connector %s does not support manual capture", ErrInvalidState, p.ConnectorName)
	}

	mandateIntent := strings.ToUpper(p.MandateIntent)
	if mandateIntent == "" {
		mandateIntent = MandateNone
	}
	switch mandateIntent {
	case MandateNone:
	case MandateCreates:
		if !caps.MandateSetupSupported {
			return nil, fmt.Errorf("%w: connector %s does not support mandate setup", ErrInvalidState, p.ConnectorName)
		}
	case MandateUses:
		if p.MandateID == "" {
			return nil, fmt.Errorf("%w: mandate id required for mandate reuse", ErrInvalidState)
		}
	default:
		return nil, fmt.Errorf("%w: unknown mandate intent %q", ErrInvalidState, p.MandateIntent)
	}

	now := e.nowFunc()
	tx := Transaction{
		TransactionID: "pay_" + uuid.NewString(),
		ConnectorName: p.ConnectorName,
		CustomerID:    p.CustomerID,
		Amount:        p.Amount,
		Currency:      currency,
		CaptureMode:   captureMode,
		Status:        StatusIntentCreated,
		MandateIntent: mandateIntent,
		MandateID:     p.MandateID,
		Capabilities:  caps,
		CreatedAt:     now,
	}

	if p.IdempotencyKey != "" {
		idempItem := map[string]interface{}{
			"idempotency_key": p.IdempotencyKey,
			"status":          idempotency.StatusInProgress,
			"transaction_id":  tx.TransactionID,
			"created_at":      now.Format(time.RFC3339),
			"updated_at":      now.Format(time.RFC3339),
		}
		if err := e.store.CreateWithIdempotencyTransaction(ctx, e.idempotencyTable, idempItem, tx, e.idempotencyTTL); err != nil {
			return nil, err
		}
	} else {
		if err := e.store.Create(ctx, tx); err != nil {
			return nil, err
		}
	}

	e.recordTransition(ctx, tx.ConnectorName, tx.Status)
	e.log.Info().
		Str("transaction_id", tx.TransactionID).
		Str("connector", tx.ConnectorName).
		Int64("amount", tx.Amount).
		Str("currency", tx.Currency).
		Str("capture_mode", tx.CaptureMode).
		Str("mandate_intent", tx.MandateIntent).
		Msg("intent created")
	return &tx, nil
}

// ConfirmParams carries the confirmation input. Instrument is required for
// one-off and mandate-creating charges and forbidden semantics apply for
// mandate reuse, where the stored token replaces it.
type ConfirmParams struct {
	Instrument         connector.Instrument
	ReturnURL          string
	MandateConstraints mandates.Constraints
}

// Confirm is strictly single-shot: it drives INTENT_CREATED through
// authorization and, for automatic capture, through settlement. A second
// confirm on the same transaction fails with ErrInvalidState without
// touching the connector.
func (e *Engine) Confirm(ctx context.Context, transactionID string, p ConfirmParams) (*Transaction, error) {
	tx, err := e.store.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrNotFound
	}
	if tx.Status != StatusIntentCreated {
		return nil, fmt.Errorf("%w: confirm requires INTENT_CREATED, got %s", ErrInvalidState, tx.Status)
	}

	conn, _, err := e.registry.Lookup(tx.ConnectorName)
	if err != nil {
		return nil, err
	}

	authReq := &connector.AuthorizeRequest{
		TransactionID: tx.TransactionID,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		ReturnURL:     p.ReturnURL,
	}

	switch tx.MandateIntent {
	case MandateUses:
		// Merchant-initiated reuse: the stored token stands in for raw
		// instrument data, which the caller must not supply.
		token, err := e.mandates.Resolve(ctx, tx.MandateID)
		if err != nil {
			if errors.Is(err, mandates.ErrNotActive) || errors.Is(err, mandates.ErrNotFound) {
				return nil, fmt.Errorf("mandate %s: %w", tx.MandateID, mandates.ErrNotActive)
			}
			return nil, err
		}
		authReq.InstrumentToken = token
	case MandateCreates:
		if len(p.Instrument) == 0 {
			return nil, fmt.Errorf("%w: payment instrument required", ErrInvalidState)
		}
		authReq.Instrument = p.Instrument
		authReq.StoreInstrument = true

		mandate, err := e.mandates.CreatePending(ctx, tx.CustomerID, tx.TransactionID, p.MandateConstraints)
		if err != nil {
			return nil, err
		}
		tx.MandateID = mandate.MandateID
	default:
		if len(p.Instrument) == 0 {
			return nil, fmt.Errorf("%w: payment instrument required", ErrInvalidState)
		}
		authReq.Instrument = p.Instrument
	}

	// Claim the record before calling out. A concurrent confirm loses here
	// with ErrConcurrentModification and never reaches the connector.
	tx.Status = StatusAuthorizing
	tx.ReturnURL = p.ReturnURL
	if err := e.store.Update(ctx, tx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.connectorTimeout)
	defer cancel()
	// Past the claim write the record must never be stranded in
	// AUTHORIZING: any failed connector call means the outcome is unknown.
	res, err := conn.Authorize(callCtx, authReq)
	if err != nil {
		return e.parkForReconciliation(ctx, tx, fmt.Sprintf("authorize outcome unknown: %v", err))
	}

	tx.ConnectorReference = res.ConnectorReference

	switch res.Status {
	case connector.StatusRequiresAction:
		// The descriptor is authoritative: a connector demanding
		// authentication it never declared is an answer we cannot act on.
		if !tx.Capabilities.AuthenticationRequired {
			return e.parkForReconciliation(ctx, tx, "connector requested authentication its descriptor does not declare")
		}
		tx.Status = StatusRequiresAction
		tx.RedirectURL = res.RedirectURL
		if err := e.store.Update(ctx, tx); err != nil {
			return nil, err
		}
		e.recordTransition(ctx, tx.ConnectorName, tx.Status)
		return tx, nil
	case connector.StatusAuthorized:
		return e.finishAuthorization(ctx, conn, tx, res.InstrumentToken)
	case connector.StatusDeclined:
		if err := e.failTransaction(ctx, tx, res.ReasonCode); err != nil {
			return nil, err
		}
		return tx, &ConnectorRejectedError{ReasonCode: res.ReasonCode}
	default:
		return e.parkForReconciliation(ctx, tx, fmt.Sprintf("unexpected authorize status %s", res.Status))
	}
}

// Cancel is only valid before funds move: INTENT_CREATED or
// REQUIRES_CUSTOMER_ACTION. Anything that has begun authorization or capture
// must run to a terminal state instead.
func (e *Engine) Cancel(ctx context.Context, transactionID string) (*Transaction, error) {
	tx, err := e.store.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrNotFound
	}
	if tx.Status != StatusIntentCreated && tx.Status != StatusRequiresAction {
		return nil, fmt.Errorf("%w: cannot cancel from %s", ErrInvalidState, tx.Status)
	}

	wasAwaitingAction := tx.Status == StatusRequiresAction
	tx.Status = StatusCancelled
	if err := e.store.Update(ctx, tx); err != nil {
		return nil, err
	}
	if wasAwaitingAction && e.redirects != nil {
		if err := e.redirects.Clear(ctx, tx.TransactionID); err != nil {
			e.log.Warn().Err(err).Str("transaction_id", tx.TransactionID).Msg("failed to clear redirect state")
		}
	}
	e.recordTransition(ctx, tx.ConnectorName, tx.Status)
	e.log.Info().Str("transaction_id", tx.TransactionID).Msg("transaction cancelled")
	return tx, nil
}

// finishAuthorization applies the post-authorization steps shared by confirm
// and redirect completion: synchronous mandate promotion, then either
// parking for manual capture or the automatic full-capture equivalent.
func (e *Engine) finishAuthorization(ctx context.Context, conn connector.Connector, tx *Transaction, instrumentToken string) (*Transaction, error) {
	if tx.MandateIntent == MandateCreates && tx.MandateID != "" {
		if instrumentToken == "" {
			// No reusable token issued: the mandate stays pending rather than
			// activating with nothing to charge against.
			e.log.Warn().
				Str("transaction_id", tx.TransactionID).
				Str("mandate_id", tx.MandateID).
				Msg("connector returned no instrument token; mandate left pending")
		} else if err := e.mandates.Promote(ctx, tx.MandateID, instrumentToken); err != nil {
			return nil, err
		}
	}

	if tx.CaptureMode == CaptureManual {
		tx.Status = StatusRequiresCapture
		if err := e.store.Update(ctx, tx); err != nil {
			return nil, err
		}
		e.recordTransition(ctx, tx.ConnectorName, tx.Status)
		return tx, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, e.connectorTimeout)
	defer cancel()
	res, err := conn.Capture(callCtx, tx.ConnectorReference, tx.Amount)
	if err != nil {
		return e.parkForReconciliation(ctx, tx, fmt.Sprintf("capture outcome unknown: %v", err))
	}
	if res.Status == connector.StatusDeclined {
		if err := e.failTransaction(ctx, tx, res.ReasonCode); err != nil {
			return nil, err
		}
		return tx, &ConnectorRejectedError{ReasonCode: res.ReasonCode}
	}

	tx.CapturedAmount = tx.Amount
	tx.Status = StatusSucceeded
	if err := e.store.Update(ctx, tx); err != nil {
		return nil, err
	}
	e.recordTransition(ctx, tx.ConnectorName, tx.Status)
	e.log.Info().
		Str("transaction_id", tx.TransactionID).
		Int64("captured_amount", tx.CapturedAmount).
		Msg("transaction succeeded")
	return tx, nil
}

// failTransaction moves a transaction to FAILED preserving the connector's
// reason code verbatim.
func (e *Engine) failTransaction(ctx context.Context, tx *Transaction, reasonCode string) error {
	tx.Status = StatusFailed
	tx.ReasonCode = reasonCode
	if err := e.store.Update(ctx, tx); err != nil {
		return err
	}
	e.recordTransition(ctx, tx.ConnectorName, tx.Status)
	e.log.Info().
		Str("transaction_id", tx.TransactionID).
		Str("reason_code", reasonCode).
		Msg("transaction failed")
	return nil
}

// parkForReconciliation records that the connector outcome is unknown. The
// transaction is never guessed into a terminal state; the reconciliation
// worker resolves it against the connector's authoritative status later.
func (e *Engine) parkForReconciliation(ctx context.Context, tx *Transaction, reason string) (*Transaction, error) {
	tx.Status = StatusPendingReconciliation
	if err := e.store.Update(ctx, tx); err != nil {
		return nil, err
	}
	e.recordTransition(ctx, tx.ConnectorName, tx.Status)
	e.log.Warn().
		Str("transaction_id", tx.TransactionID).
		Str("reason", reason).
		Msg("transaction parked for reconciliation")

	if e.queue != nil {
		msg := aws.ReconciliationMessage{
			TransactionID: tx.TransactionID,
			Connector:     tx.ConnectorName,
			Reason:        reason,
		}
		if err := e.queue.EnqueueReconciliation(ctx, msg); err != nil {
			// The record already says PENDING_RECONCILIATION; a scheduled
			// sweep can still find it even if the enqueue is lost.
			e.log.Error().Err(err).Str("transaction_id", tx.TransactionID).Msg("failed to enqueue reconciliation")
		}
	}
	return tx, nil
}

func (e *Engine) recordTransition(ctx context.Context, connectorName, status string) {
	if e.metrics != nil {
		e.metrics.RecordTransition(ctx, connectorName, status)
	}
}
