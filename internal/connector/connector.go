package connector

import (
	"context"
	"errors"
)

// Capabilities describes what a connector supports for a transaction. It is
// resolved once at intent creation and snapshotted onto the transaction
// record; the engine branches only on these flags, never on connector name.
type Capabilities struct {
	AuthenticationRequired bool `json:"authentication_required"`
	ManualCaptureSupported bool `json:"manual_capture_supported"`
	MandateSetupSupported  bool `json:"mandate_setup_supported"`
}

// Call statuses reported by a connector. Declines carry a reason code that is
// preserved verbatim for the caller; they are business outcomes, not errors.
const (
	StatusAuthorized     = "AUTHORIZED"
	StatusRequiresAction = "REQUIRES_ACTION"
	StatusDeclined       = "DECLINED"
	StatusCaptured       = "CAPTURED"
	StatusPending        = "PENDING"
)

// ErrUnreachable marks a transport-level failure or timeout: the outcome of
// the call is unknown, which is different from a decline.
var ErrUnreachable = errors.New("connector unreachable")

// Instrument is raw caller-supplied payment instrument data. The engine
// treats it as opaque and never persists it.
type Instrument map[string]string

// AuthorizeRequest is the connector-facing authorization request.
type AuthorizeRequest struct {
	TransactionID string     `json:"transactionId"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	Instrument    Instrument `json:"instrument,omitempty"`
	// InstrumentToken replaces Instrument on merchant-initiated reuse.
	InstrumentToken string `json:"instrumentToken,omitempty"`
	// StoreInstrument asks the connector to tokenize the instrument for
	// future merchant-initiated charges.
	StoreInstrument bool   `json:"storeInstrument,omitempty"`
	ReturnURL       string `json:"returnUrl,omitempty"`
}

// AuthorizeResult is the connector's answer to an authorization request.
type AuthorizeResult struct {
	Status             string `json:"status"`
	ConnectorReference string `json:"connectorReference"`
	RedirectURL        string `json:"redirectUrl,omitempty"`
	InstrumentToken    string `json:"instrumentToken,omitempty"`
	ReasonCode         string `json:"reasonCode,omitempty"`
}

// AuthenticationResult is the outcome of an out-of-band authentication step.
type AuthenticationResult struct {
	Status          string `json:"status"`
	InstrumentToken string `json:"instrumentToken,omitempty"`
	ReasonCode      string `json:"reasonCode,omitempty"`
}

// CaptureResult is the connector's answer to a capture request.
type CaptureResult struct {
	Status     string `json:"status"`
	ReasonCode string `json:"reasonCode,omitempty"`
}

// StatusResult is the connector's authoritative view of a transaction.
type StatusResult struct {
	Status     string `json:"status"`
	ReasonCode string `json:"reasonCode,omitempty"`
}

// Connector is the capability-tagged wire adapter for one payment processor.
// Implementations translate these fixed operations to the processor's own
// formats; all of them may fail with ErrUnreachable, which callers must treat
// as "outcome unknown".
type Connector interface {
	Name() string
	Authorize(ctx context.Context, req *AuthorizeRequest) (*AuthorizeResult, error)
	CheckAuthenticationOutcome(ctx context.Context, reference string) (*AuthenticationResult, error)
	Capture(ctx context.Context, reference string, amount int64) (*CaptureResult, error)
	QueryStatus(ctx context.Context, reference string) (*StatusResult, error)
}
