package mandates

import "time"

// Mandate statuses. REVOKED and EXPIRED are terminal and retained for audit;
// a mandate is never deleted.
const (
	StatusPending = "PENDING"
	StatusActive  = "ACTIVE"
	StatusRevoked = "REVOKED"
	StatusExpired = "EXPIRED"
)

// Constraints are caller-declared limits on mandate usage. The engine stores
// and surfaces them; enforcement belongs to an external policy collaborator.
type Constraints struct {
	MaxAmount int64  `dynamodbav:"max_amount,omitempty" json:"max_amount,omitempty"`
	Frequency string `dynamodbav:"frequency,omitempty" json:"frequency,omitempty"`
}

// Mandate is a reusable authorization as stored in DynamoDB. The instrument
// token is connector-issued and opaque; raw instrument data never lands here.
type Mandate struct {
	MandateID           string      `dynamodbav:"mandate_id"` // PK
	CustomerID          string      `dynamodbav:"customer_id"`
	Status              string      `dynamodbav:"status"`
	InstrumentToken     string      `dynamodbav:"instrument_token,omitempty"`
	OriginTransactionID string      `dynamodbav:"origin_transaction_id"`
	Constraints         Constraints `dynamodbav:"constraints"`
	Version             int64       `dynamodbav:"version"`
	CreatedAt           time.Time   `dynamodbav:"created_at"`
	UpdatedAt           time.Time   `dynamodbav:"updated_at"`
}

// IsTerminal reports whether a mandate status permits no further transitions.
func IsTerminal(status string) bool {
	return status == StatusRevoked || status == StatusExpired
}
