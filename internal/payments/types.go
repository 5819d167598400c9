package payments

import (
	"time"

	"github.com/openfloat/go-payment-switch/internal/connector"
)

// Transaction statuses. Transitions are monotonic: once a terminal status is
// reached the record is immutable.
const (
	StatusIntentCreated         = "INTENT_CREATED"
	StatusAuthorizing           = "AUTHORIZING"
	StatusRequiresAction        = "REQUIRES_CUSTOMER_ACTION"
	StatusRequiresCapture       = "REQUIRES_CAPTURE"
	StatusPendingReconciliation = "PENDING_RECONCILIATION"
	StatusSucceeded             = "SUCCEEDED"
	StatusFailed                = "FAILED"
	StatusCancelled             = "CANCELLED"
)

// Capture modes
const (
	CaptureAutomatic = "AUTOMATIC"
	CaptureManual    = "MANUAL"
)

// Mandate linkage of a transaction: a one-off charge, a charge establishing
// a mandate, or a merchant-initiated charge reusing one.
const (
	MandateNone    = "NONE"
	MandateCreates = "CREATES"
	MandateUses    = "USES"
)

// Transaction represents one payment attempt as stored in DynamoDB.
type Transaction struct {
	TransactionID      string `dynamodbav:"transaction_id"` // PK
	ConnectorName      string `dynamodbav:"connector"`
	ConnectorReference string `dynamodbav:"connector_reference,omitempty"`
	CustomerID         string `dynamodbav:"customer_id,omitempty"`

	Amount      int64  `dynamodbav:"amount"` // minor units
	Currency    string `dynamodbav:"currency"`
	CaptureMode string `dynamodbav:"capture_mode"` // AUTOMATIC | MANUAL

	Status         string `dynamodbav:"status"`
	CapturedAmount int64  `dynamodbav:"captured_amount"`

	MandateIntent string `dynamodbav:"mandate_intent"` // NONE | CREATES | USES
	MandateID     string `dynamodbav:"mandate_id,omitempty"`

	// ReasonCode carries the connector's decline code verbatim.
	ReasonCode string `dynamodbav:"reason_code,omitempty"`

	// RedirectURL is the connector-issued authentication target; ReturnURL is
	// the caller-supplied destination after the customer completes it.
	RedirectURL string `dynamodbav:"redirect_url,omitempty"`
	ReturnURL   string `dynamodbav:"return_url,omitempty"`

	// Capabilities are snapshotted from the connector registry at intent
	// creation and immutable for the transaction's lifetime.
	Capabilities connector.Capabilities `dynamodbav:"capabilities"`

	// Version guards every write: a stale writer fails with
	// ErrConcurrentModification instead of overwriting.
	Version int64 `dynamodbav:"version"`

	CreatedAt    time.Time `dynamodbav:"created_at"`
	UpdatedAt    time.Time `dynamodbav:"updated_at"`
	LastSyncedAt time.Time `dynamodbav:"last_synced_at"`
}

// IsTerminal reports whether a status permits no further transitions.
func IsTerminal(status string) bool {
	switch status {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// RemainingAuthorized is the amount still claimable by capture.
func (t *Transaction) RemainingAuthorized() int64 {
	return t.Amount - t.CapturedAmount
}

// recognizedCurrencies is the set of ISO 4217 codes the switch accepts.
// Connectors may support fewer; that surfaces as a connector decline.
var recognizedCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "CAD": true, "AUD": true,
	"NZD": true, "CHF": true, "SEK": true, "NOK": true, "DKK": true,
	"JPY": true, "CNY": true, "HKD": true, "SGD": true, "INR": true,
	"BRL": true, "MXN": true, "PLN": true, "CZK": true, "AED": true,
	"SAR": true, "ZAR": true, "KRW": true, "MYR": true, "THB": true,
}

// CurrencyRecognized reports whether a currency code is accepted.
func CurrencyRecognized(code string) bool {
	return recognizedCurrencies[code]
}
