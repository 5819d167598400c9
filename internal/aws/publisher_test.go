package aws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type mockSQS struct {
	sent []sqs.SendMessageInput
	err  error
}

func (m *mockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.sent = append(m.sent, *params)
	return &sqs.SendMessageOutput{}, nil
}

func TestEnqueueReconciliation(t *testing.T) {
	mock := &mockSQS{}
	p := NewPublisher(mock, "https://sqs.test/queue")

	msg := ReconciliationMessage{
		TransactionID: "pay_1",
		Connector:     "alpha",
		Reason:        "authorize outcome unknown",
	}
	if err := p.EnqueueReconciliation(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(mock.sent))
	}
	sent := mock.sent[0]
	if *sent.QueueUrl != "https://sqs.test/queue" {
		t.Fatalf("queue url mismatch: %s", *sent.QueueUrl)
	}

	var decoded ReconciliationMessage
	if err := json.Unmarshal([]byte(*sent.MessageBody), &decoded); err != nil {
		t.Fatalf("body not json: %v", err)
	}
	if decoded.TransactionID != "pay_1" || decoded.Connector != "alpha" {
		t.Fatalf("body mismatch: %+v", decoded)
	}
	attr, ok := sent.MessageAttributes["transaction_id"]
	if !ok || *attr.StringValue != "pay_1" {
		t.Fatalf("transaction_id attribute missing or wrong: %+v", sent.MessageAttributes)
	}
}

func TestEnqueueReconciliation_SendError(t *testing.T) {
	mock := &mockSQS{err: errors.New("throttled")}
	p := NewPublisher(mock, "https://sqs.test/queue")

	err := p.EnqueueReconciliation(context.Background(), ReconciliationMessage{TransactionID: "pay_2"})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}
