package validation

// CreatePaymentRequest is the payload for POST /payments.
// Connector arrives from the upstream routing decision; amount is in minor
// units of the given ISO 4217 currency.
type CreatePaymentRequest struct {
	Connector     string `json:"connector" validate:"required"`
	CustomerID    string `json:"customer_id,omitempty"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	Currency      string `json:"currency" validate:"required,iso4217"`
	CaptureMode   string `json:"capture_mode,omitempty" validate:"omitempty,oneof=automatic manual"`
	MandateIntent string `json:"mandate_intent,omitempty" validate:"omitempty,oneof=none creates uses"`
	MandateID     string `json:"mandate_id,omitempty"`
}

// ConfirmPaymentRequest is the payload for POST /payments/:id/confirm.
// Instrument is the raw payment instrument for customer-present charges; it
// must be absent when the transaction reuses a mandate.
type ConfirmPaymentRequest struct {
	Instrument map[string]string `json:"instrument,omitempty"`
	ReturnURL  string            `json:"return_url,omitempty" validate:"omitempty,url"`
	// Mandate constraints, surfaced for external policy enforcement.
	MaxAmount int64  `json:"max_amount,omitempty" validate:"omitempty,gt=0"`
	Frequency string `json:"frequency,omitempty"`
}

// CapturePaymentRequest is the payload for POST /payments/:id/capture.
type CapturePaymentRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

// CompleteRedirectRequest is the provider callback payload for
// POST /payments/:id/redirect/complete.
type CompleteRedirectRequest struct {
	Reference string `json:"reference" validate:"required"`
}
