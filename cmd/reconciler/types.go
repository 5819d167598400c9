package main

// queueMessage is the payload sent from the engine -> SQS -> reconciler.
// It mirrors aws.ReconciliationMessage on the wire.
type queueMessage struct {
	TransactionID string `json:"transaction_id"`
	Connector     string `json:"connector"`
	Reason        string `json:"reason,omitempty"`
}
