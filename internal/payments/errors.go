package payments

import (
	"errors"
	"fmt"
)

// Validation and state-precondition errors. These are returned synchronously
// and are never retried automatically.
var (
	ErrInvalidAmount              = errors.New("invalid amount")
	ErrUnsupportedCurrency        = errors.New("unsupported currency")
	ErrInvalidState               = errors.New("operation not valid for current transaction state")
	ErrAmountExceedsAuthorization = errors.New("amount exceeds remaining authorization")
	ErrConcurrentModification     = errors.New("transaction modified concurrently")
	ErrNotFound                   = errors.New("transaction not found")
)

// ConnectorRejectedError is a business decline from the connector. It is
// terminal; the reason code is preserved verbatim for caller diagnosis.
type ConnectorRejectedError struct {
	ReasonCode string
}

func (e *ConnectorRejectedError) Error() string {
	return fmt.Sprintf("connector rejected: %s", e.ReasonCode)
}
