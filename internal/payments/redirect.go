package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/openfloat/go-payment-switch/internal/connector"
)

// CallbackPayload is the provider callback delivered when the customer
// returns from the out-of-band authentication step.
type CallbackPayload struct {
	Reference string `json:"reference"`
}

// BeginRedirect hands out the connector-issued authentication target and
// arms the redirect session (return destination, attempt counter). Valid
// only while the transaction awaits customer action.
func (e *Engine) BeginRedirect(ctx context.Context, transactionID string) (string, error) {
	tx, err := e.store.Get(ctx, transactionID)
	if err != nil {
		return "", err
	}
	if tx == nil {
		return "", ErrNotFound
	}
	if tx.Status != StatusRequiresAction {
		return "", fmt.Errorf("%w: redirect requires REQUIRES_CUSTOMER_ACTION, got %s", ErrInvalidState, tx.Status)
	}

	if err := e.redirects.Begin(ctx, tx.TransactionID, tx.ReturnURL); err != nil {
		return "", err
	}
	e.log.Info().
		Str("transaction_id", tx.TransactionID).
		Str("connector", tx.ConnectorName).
		Msg("redirect started")
	return tx.RedirectURL, nil
}

// CompleteRedirect resolves the authentication step from a provider
// callback. Redirect callbacks can be delivered more than once, so a
// completion that arrives after the transaction has already moved on is a
// no-op returning the existing state. An ambiguous connector answer parks
// the transaction for reconciliation instead of guessing.
func (e *Engine) CompleteRedirect(ctx context.Context, transactionID string, payload CallbackPayload) (*Transaction, error) {
	tx, err := e.store.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrNotFound
	}

	switch tx.Status {
	case StatusRequiresAction:
		// fall through to resolution below
	case StatusIntentCreated, StatusAuthorizing:
		return nil, fmt.Errorf("%w: no redirect pending for %s", ErrInvalidState, tx.Status)
	default:
		// Duplicate delivery after the outcome landed; report what we have.
		e.log.Info().
			Str("transaction_id", tx.TransactionID).
			Str("status", tx.Status).
			Msg("duplicate redirect completion ignored")
		return tx, nil
	}

	if payload.Reference != tx.ConnectorReference {
		return nil, fmt.Errorf("%w: callback reference %q does not match transaction", ErrInvalidState, payload.Reference)
	}

	attempt, err := e.redirects.IncrementAttempt(ctx, tx.TransactionID)
	if err != nil {
		e.log.Warn().Err(err).Str("transaction_id", tx.TransactionID).Msg("failed to count redirect attempt")
	} else if attempt > 1 {
		e.log.Info().
			Str("transaction_id", tx.TransactionID).
			Int64("attempt", attempt).
			Msg("repeat redirect completion attempt")
	}

	conn, _, err := e.registry.Lookup(tx.ConnectorName)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.connectorTimeout)
	defer cancel()
	outcome, err := conn.CheckAuthenticationOutcome(callCtx, tx.ConnectorReference)
	if err != nil {
		if errors.Is(err, connector.ErrUnreachable) {
			return e.parkForReconciliation(ctx, tx, "authentication outcome unknown")
		}
		return nil, err
	}

	switch outcome.Status {
	case connector.StatusAuthorized:
		result, err := e.finishAuthorization(ctx, conn, tx, outcome.InstrumentToken)
		if err != nil {
			return result, err
		}
		e.clearRedirectState(ctx, tx.TransactionID)
		return result, nil
	case connector.StatusDeclined:
		if err := e.failTransaction(ctx, tx, outcome.ReasonCode); err != nil {
			return nil, err
		}
		e.clearRedirectState(ctx, tx.TransactionID)
		return tx, &ConnectorRejectedError{ReasonCode: outcome.ReasonCode}
	default:
		return e.parkForReconciliation(ctx, tx, fmt.Sprintf("ambiguous authentication status %s", outcome.Status))
	}
}

func (e *Engine) clearRedirectState(ctx context.Context, transactionID string) {
	if err := e.redirects.Clear(ctx, transactionID); err != nil {
		e.log.Warn().Err(err).Str("transaction_id", transactionID).Msg("failed to clear redirect state")
	}
}
