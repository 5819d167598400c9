package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/openfloat/go-payment-switch/internal/connector"
)

func TestStore_CreateAndGet(t *testing.T) {
	mock := newMockDynamo()
	store := NewStore(mock, "transactions")
	ctx := context.Background()

	tx := Transaction{
		TransactionID: "pay_store_1",
		ConnectorName: "alpha",
		Amount:        1000,
		Currency:      "USD",
		CaptureMode:   CaptureAutomatic,
		Status:        StatusIntentCreated,
		MandateIntent: MandateNone,
	}
	if err := store.Create(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, "pay_store_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatalf("expected transaction, got nil")
	}
	if got.Status != StatusIntentCreated || got.Amount != 1000 || got.Version != 0 {
		t.Fatalf("record mismatch: %+v", got)
	}

	// duplicate create rejected
	if err := store.Create(ctx, tx); err == nil {
		t.Fatalf("expected duplicate create to fail")
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	store := NewStore(newMockDynamo(), "transactions")
	got, err := store.Get(context.Background(), "pay_missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing transaction, got %+v", got)
	}
}

func TestStore_Update_VersionConflict(t *testing.T) {
	mock := newMockDynamo()
	store := NewStore(mock, "transactions")
	ctx := context.Background()

	tx := Transaction{
		TransactionID: "pay_store_2",
		ConnectorName: "alpha",
		Amount:        500,
		Currency:      "EUR",
		CaptureMode:   CaptureManual,
		Status:        StatusIntentCreated,
		MandateIntent: MandateNone,
		Capabilities:  connector.Capabilities{ManualCaptureSupported: true},
	}
	if err := store.Create(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Two readers load the same version.
	first, _ := store.Get(ctx, "pay_store_2")
	second, _ := store.Get(ctx, "pay_store_2")

	first.Status = StatusAuthorizing
	if err := store.Update(ctx, first); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if first.Version != 1 {
		t.Fatalf("expected version bump to 1, got %d", first.Version)
	}

	second.Status = StatusCancelled
	err := store.Update(ctx, second)
	if !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}

	// The committed write wins; the stale one left no trace.
	got, _ := store.Get(ctx, "pay_store_2")
	if got.Status != StatusAuthorizing || got.Version != 1 {
		t.Fatalf("stored record corrupted by stale write: %+v", got)
	}
}
