package payments

import (
	"context"
	"errors"

	"github.com/openfloat/go-payment-switch/internal/connector"
)

// Retrieve is the read path. Terminal transactions are returned as stored,
// forever identical. A non-terminal transaction whose last connector sync is
// older than the freshness threshold is reconciled against the connector's
// authoritative status first.
func (e *Engine) Retrieve(ctx context.Context, transactionID string) (*Transaction, error) {
	return e.retrieve(ctx, transactionID, false)
}

// Reconcile forces a connector sync regardless of freshness. Used by the
// background worker to re-drive PENDING_RECONCILIATION transactions.
func (e *Engine) Reconcile(ctx context.Context, transactionID string) (*Transaction, error) {
	return e.retrieve(ctx, transactionID, true)
}

func (e *Engine) retrieve(ctx context.Context, transactionID string, force bool) (*Transaction, error) {
	tx, err := e.store.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrNotFound
	}
	// Reconciliation never reverses a terminal state.
	if IsTerminal(tx.Status) {
		return tx, nil
	}
	if !force {
		fresh := !tx.LastSyncedAt.IsZero() && e.nowFunc().Sub(tx.LastSyncedAt) < e.freshness
		if fresh {
			return tx, nil
		}
		// A record that has never talked to the connector has nothing to
		// reconcile against yet.
		if tx.ConnectorReference == "" {
			return tx, nil
		}
	}
	if tx.ConnectorReference == "" {
		return tx, nil
	}

	conn, _, err := e.registry.Lookup(tx.ConnectorName)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.connectorTimeout)
	defer cancel()
	res, err := conn.QueryStatus(callCtx, tx.ConnectorReference)
	if err != nil {
		if errors.Is(err, connector.ErrUnreachable) {
			// Read path stays safe: return what we know, try again later.
			e.log.Warn().
				Str("transaction_id", tx.TransactionID).
				Msg("connector unreachable during reconciliation")
			return tx, nil
		}
		return nil, err
	}

	tx.LastSyncedAt = e.nowFunc()

	// The connector is the source of truth for settlement outcome: its
	// terminal statuses override ambiguous local state. Non-terminal
	// connector statuses leave local state unchanged.
	switch res.Status {
	case connector.StatusCaptured:
		tx.CapturedAmount = tx.Amount
		tx.Status = StatusSucceeded
	case connector.StatusDeclined:
		tx.Status = StatusFailed
		tx.ReasonCode = res.ReasonCode
	}

	if err := e.store.Update(ctx, tx); err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			// Someone else committed meanwhile; their write wins, re-read.
			return e.store.Get(ctx, transactionID)
		}
		return nil, err
	}
	if IsTerminal(tx.Status) {
		e.recordTransition(ctx, tx.ConnectorName, tx.Status)
		e.log.Info().
			Str("transaction_id", tx.TransactionID).
			Str("status", tx.Status).
			Msg("transaction reconciled to terminal state")
	}
	return tx, nil
}
