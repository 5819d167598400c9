package payments

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfloat/go-payment-switch/internal/aws"
	"github.com/openfloat/go-payment-switch/internal/connector"
	"github.com/openfloat/go-payment-switch/internal/mandates"
)

// stubConnector is a scripted connector adapter: each operation returns the
// pre-configured result or error and counts its calls.
type stubConnector struct {
	name string

	authorizeRes *connector.AuthorizeResult
	authorizeErr error
	authorizeN   int

	outcomeRes *connector.AuthenticationResult
	outcomeErr error
	outcomeN   int

	captureRes *connector.CaptureResult
	captureErr error
	captureN   int

	statusRes *connector.StatusResult
	statusErr error
	statusN   int
}

func (s *stubConnector) Name() string { return s.name }

func (s *stubConnector) Authorize(ctx context.Context, req *connector.AuthorizeRequest) (*connector.AuthorizeResult, error) {
	s.authorizeN++
	if s.authorizeErr != nil {
		return nil, s.authorizeErr
	}
	return s.authorizeRes, nil
}

func (s *stubConnector) CheckAuthenticationOutcome(ctx context.Context, reference string) (*connector.AuthenticationResult, error) {
	s.outcomeN++
	if s.outcomeErr != nil {
		return nil, s.outcomeErr
	}
	return s.outcomeRes, nil
}

func (s *stubConnector) Capture(ctx context.Context, reference string, amount int64) (*connector.CaptureResult, error) {
	s.captureN++
	if s.captureErr != nil {
		return nil, s.captureErr
	}
	return s.captureRes, nil
}

func (s *stubConnector) QueryStatus(ctx context.Context, reference string) (*connector.StatusResult, error) {
	s.statusN++
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return s.statusRes, nil
}

// memRedirects is an in-memory redirect state store.
type memRedirects struct {
	mu       sync.Mutex
	returns  map[string]string
	attempts map[string]int64
}

func newMemRedirects() *memRedirects {
	return &memRedirects{
		returns:  map[string]string{},
		attempts: map[string]int64{},
	}
}

func (m *memRedirects) Begin(ctx context.Context, transactionID, returnURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returns[transactionID] = returnURL
	m.attempts[transactionID] = 0
	return nil
}

func (m *memRedirects) IncrementAttempt(ctx context.Context, transactionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[transactionID]++
	return m.attempts[transactionID], nil
}

func (m *memRedirects) ReturnURL(ctx context.Context, transactionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.returns[transactionID], nil
}

func (m *memRedirects) Clear(ctx context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.returns, transactionID)
	delete(m.attempts, transactionID)
	return nil
}

// queueRecorder captures reconciliation enqueues.
type queueRecorder struct {
	mu       sync.Mutex
	messages []aws.ReconciliationMessage
}

func (q *queueRecorder) EnqueueReconciliation(ctx context.Context, msg aws.ReconciliationMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, msg)
	return nil
}

// metricsRecorder counts transitions by status.
type metricsRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newMetricsRecorder() *metricsRecorder {
	return &metricsRecorder{counts: map[string]int{}}
}

func (m *metricsRecorder) RecordTransition(ctx context.Context, connectorName, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[status]++
}

type testEnv struct {
	engine    *Engine
	store     *Store
	mandates  *mandates.Manager
	dynamo    *mockDynamo
	conn      *stubConnector
	redirects *memRedirects
	queue     *queueRecorder
	metrics   *metricsRecorder
}

func newTestEnv(conn *stubConnector, caps connector.Capabilities) *testEnv {
	dynamo := newMockDynamo()
	store := NewStore(dynamo, "transactions")
	mandateManager := mandates.NewManager(mandates.NewStore(dynamo, "mandates"), zerolog.Nop())
	registry := connector.NewRegistry()
	registry.Register(conn, caps)

	redirectStore := newMemRedirects()
	queue := &queueRecorder{}
	recorder := newMetricsRecorder()

	engine := NewEngine(Deps{
		Store:            store,
		Mandates:         mandateManager,
		Registry:         registry,
		Redirects:        redirectStore,
		Queue:            queue,
		Metrics:          recorder,
		Log:              zerolog.Nop(),
		IdempotencyTable: "idempotency",
		IdempotencyTTL:   48 * time.Hour,
		ConnectorTimeout: time.Second,
		Freshness:        2 * time.Minute,
	})

	return &testEnv{
		engine:    engine,
		store:     store,
		mandates:  mandateManager,
		dynamo:    dynamo,
		conn:      conn,
		redirects: redirectStore,
		queue:     queue,
		metrics:   recorder,
	}
}
