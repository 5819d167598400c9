package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"github.com/openfloat/go-payment-switch/internal/payments"
)

// reconcilingEngine is the slice of the payment engine the worker drives.
type reconcilingEngine interface {
	Reconcile(ctx context.Context, transactionID string) (*payments.Transaction, error)
}

// Processor handles SQS messages and re-drives parked transactions against
// the connector's authoritative status.
type Processor struct {
	engine reconcilingEngine
	log    zerolog.Logger
}

// NewProcessor creates a worker processor over the payment engine.
func NewProcessor(engine reconcilingEngine, log zerolog.Logger) *Processor {
	return &Processor{engine: engine, log: log}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Return error: Lambda will retry. If it keeps failing the
			// message lands in the DLQ for inspection.
			p.log.Error().Err(err).Msg("reconciler error")
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg queueMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}

	p.log.Info().
		Str("transaction_id", msg.TransactionID).
		Str("connector", msg.Connector).
		Str("reason", msg.Reason).
		Msg("reconciling transaction")

	tx, err := p.engine.Reconcile(ctx, msg.TransactionID)
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", msg.TransactionID, err)
	}

	// Still ambiguous: fail the message so SQS redelivers it later. The
	// engine never guesses a terminal state on stale evidence.
	if tx.Status == payments.StatusPendingReconciliation {
		return fmt.Errorf("transaction %s still pending reconciliation", msg.TransactionID)
	}

	p.log.Info().
		Str("transaction_id", tx.TransactionID).
		Str("status", tx.Status).
		Msg("reconciliation resolved")
	return nil
}
