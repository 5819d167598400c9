package payments

import (
	"context"
	"fmt"

	"github.com/openfloat/go-payment-switch/internal/connector"
)

// Capture claims previously authorized funds on a manual-mode transaction.
// Partial captures accumulate; the transaction completes once the full
// authorized amount is captured. Automatic-mode transactions never reach
// REQUIRES_CAPTURE, so they can never get here.
func (e *Engine) Capture(ctx context.Context, transactionID string, amount int64) (*Transaction, error) {
	tx, err := e.store.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrNotFound
	}
	if tx.Status != StatusRequiresCapture {
		return nil, fmt.Errorf("%w: capture requires REQUIRES_CAPTURE, got %s", ErrInvalidState, tx.Status)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	if amount > tx.RemainingAuthorized() {
		return nil, fmt.Errorf("%w: requested %d, remaining %d", ErrAmountExceedsAuthorization, amount, tx.RemainingAuthorized())
	}

	conn, _, err := e.registry.Lookup(tx.ConnectorName)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.connectorTimeout)
	defer cancel()
	// Once the call is in flight the outcome of any failure is unknown;
	// the record parks instead of guessing or stalling.
	res, err := conn.Capture(callCtx, tx.ConnectorReference, amount)
	if err != nil {
		return e.parkForReconciliation(ctx, tx, fmt.Sprintf("capture outcome unknown: %v", err))
	}
	if res.Status == connector.StatusDeclined {
		if err := e.failTransaction(ctx, tx, res.ReasonCode); err != nil {
			return nil, err
		}
		return tx, &ConnectorRejectedError{ReasonCode: res.ReasonCode}
	}

	tx.CapturedAmount += amount
	if tx.CapturedAmount == tx.Amount {
		tx.Status = StatusSucceeded
	}
	if err := e.store.Update(ctx, tx); err != nil {
		return nil, err
	}
	e.recordTransition(ctx, tx.ConnectorName, tx.Status)
	e.log.Info().
		Str("transaction_id", tx.TransactionID).
		Int64("captured", amount).
		Int64("captured_total", tx.CapturedAmount).
		Str("status", tx.Status).
		Msg("capture applied")
	return tx, nil
}
