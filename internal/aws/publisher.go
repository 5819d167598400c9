package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// ReconciliationMessage is the payload enqueued when a transaction is parked
// in PENDING_RECONCILIATION and needs to be re-driven by the worker.
type ReconciliationMessage struct {
	TransactionID string `json:"transaction_id"`
	Connector     string `json:"connector"`
	Reason        string `json:"reason,omitempty"`
}

// Publisher wraps an SQS client and the reconciliation queue URL.
type Publisher struct {
	SQS      SQSAPI
	QueueURL string
}

// NewPublisher returns a Publisher bound to a queue URL.
func NewPublisher(sqsClient SQSAPI, queueURL string) *Publisher {
	return &Publisher{
		SQS:      sqsClient,
		QueueURL: queueURL,
	}
}

// EnqueueReconciliation sends a reconciliation message for a transaction.
// The transaction id is also attached as a message attribute so the queue can
// be inspected without parsing bodies.
func (p *Publisher) EnqueueReconciliation(ctx context.Context, msg ReconciliationMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal reconciliation message: %w", err)
	}

	bodyStr := string(body)
	input := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: &bodyStr,
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"transaction_id": {
				DataType:    awsString("String"),
				StringValue: &msg.TransactionID,
			},
		},
	}

	if _, err := p.SQS.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// awsString helper
func awsString(s string) *string { return &s }
