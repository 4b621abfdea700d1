package radixstream_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/ociswap/radixstream/pkg/radixstream"
	"github.com/ociswap/radixstream/pkg/radixstream/sources/channel"
)

// testLogger records every hook invocation so tests can assert on the
// handling/is_retry flags and retry counts without depending on log
// output.
type testLogger struct {
	mu sync.Mutex

	receiveTx []struct{ handling, isRetry bool }
	finishTx  []bool

	eventRetries int
	txRetries    int
	unrecoverable error
}

func (l *testLogger) ReceiveTransaction(_ context.Context, _ *Transaction, handling, isRetry bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.receiveTx = append(l.receiveTx, struct{ handling, isRetry bool }{handling, isRetry})
}
func (l *testLogger) FinishTransaction(_ context.Context, _ *Transaction, handling bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finishTx = append(l.finishTx, handling)
}
func (l *testLogger) ReceiveEvent(context.Context, *Transaction, *Event, int, bool, bool) {}
func (l *testLogger) FinishEvent(context.Context, *Transaction, *Event, int, bool)         {}
func (l *testLogger) EventRetryError(_ context.Context, _ *Transaction, _ *Event, _ error, _ time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.eventRetries++
}
func (l *testLogger) TransactionRetryError(_ context.Context, _ *Transaction, _ error, _ time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txRetries++
}
func (l *testLogger) UnrecoverableError(_ context.Context, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unrecoverable = err
}
func (l *testLogger) PeriodicReport(context.Context)        {}
func (l *testLogger) PeriodicReportInterval() time.Duration { return time.Hour }

func runProcessor[S any, C any](t *testing.T, p *TransactionProcessor[S, C]) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("processor did not exit in time")
		return nil
	}
}

// Scenario 1: skip. No event in the transaction matches a registered
// handler; the transaction handler must not be invoked.
func TestScenarioSkip(t *testing.T) {
	registry := NewHandlerRegistry()
	invoked := 0
	AddHandler(registry, "package_P", "InstantiateEvent", func(ctx context.Context, hctx HandlerContext[*int, struct{}], payload []byte) error {
		invoked++
		return nil
	})

	src, sender := channel.New(4)
	sender <- Transaction{
		StateVersion: 1,
		Events: []Event{
			{Name: "SwapEvent", Emitter: Emitter{Kind: EmitterFunction, PackageAddress: "package_Q"}},
		},
	}
	close(sender)

	state := new(int)
	logger := &testLogger{}
	p := NewTransactionProcessor[*int, struct{}](src, registry, state)
	p.Logger = logger

	if err := runProcessor(t, p); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if invoked != 0 {
		t.Fatalf("handler invoked %d times, want 0", invoked)
	}
	if len(logger.receiveTx) != 1 || logger.receiveTx[0].handling {
		t.Fatalf("expected one receive with handling=false, got %+v", logger.receiveTx)
	}
	if len(logger.finishTx) != 1 || logger.finishTx[0] {
		t.Fatalf("expected one finish with handling=false, got %+v", logger.finishTx)
	}
}

// Scenario 2: dispatch + mutation. An InstantiateEvent handler registers a
// per-component handler mid-stream; a later transaction's event must see
// the mutation.
func TestScenarioDispatchAndMutation(t *testing.T) {
	registry := NewHandlerRegistry()
	var instantiateCalls, swapCalls int

	AddHandler(registry, "package_P", "InstantiateEvent", func(ctx context.Context, hctx HandlerContext[*int, struct{}], payload []byte) error {
		instantiateCalls++
		AddHandler(hctx.Registry, "component_A", "SwapEvent", func(ctx context.Context, hctx HandlerContext[*int, struct{}], payload []byte) error {
			swapCalls++
			return nil
		})
		return nil
	})

	src, sender := channel.New(4)
	sender <- Transaction{
		StateVersion: 1,
		Events: []Event{
			{Name: "InstantiateEvent", Emitter: Emitter{Kind: EmitterFunction, PackageAddress: "package_P"}},
		},
	}
	sender <- Transaction{
		StateVersion: 2,
		Events: []Event{
			{Name: "SwapEvent", Emitter: Emitter{Kind: EmitterMethod, EntityAddress: "component_A", EntityType: EntityGlobalGenericComponent}},
		},
	}
	close(sender)

	p := NewTransactionProcessor[*int, struct{}](src, registry, new(int))
	p.Logger = NoopLogger{}

	if err := runProcessor(t, p); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if instantiateCalls != 1 || swapCalls != 1 {
		t.Fatalf("instantiateCalls=%d swapCalls=%d, want 1 and 1", instantiateCalls, swapCalls)
	}
}

// Scenario 3: event retry localizes. A handler returning EventRetry twice
// then succeeding is invoked exactly 3 times, with no transaction-handler
// side effects beyond the single implicit DefaultTransactionHandler call.
func TestScenarioEventRetryLocalizes(t *testing.T) {
	registry := NewHandlerRegistry()
	var calls int
	AddHandler(registry, "component_A", "SwapEvent", func(ctx context.Context, hctx HandlerContext[*int, struct{}], payload []byte) error {
		calls++
		if calls < 3 {
			return EventRetry(errors.New("transient"))
		}
		return nil
	})

	src, sender := channel.New(4)
	sender <- Transaction{
		StateVersion: 1,
		Events: []Event{
			{Name: "SwapEvent", Emitter: Emitter{Kind: EmitterMethod, EntityAddress: "component_A", EntityType: EntityGlobalGenericComponent}},
		},
	}
	close(sender)

	logger := &testLogger{}
	p := NewTransactionProcessor[*int, struct{}](src, registry, new(int))
	p.Logger = logger
	p.EventRetryDelay = 0

	if err := runProcessor(t, p); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("handler invoked %d times, want 3", calls)
	}
	if logger.eventRetries != 2 {
		t.Fatalf("eventRetries=%d, want 2", logger.eventRetries)
	}
	if len(logger.finishTx) != 1 {
		t.Fatalf("transaction handler finished %d times, want 1", len(logger.finishTx))
	}
}

// scopeResource stands in for a scoped per-transaction resource such as a
// database transaction, tracking how many times it was constructed versus
// committed.
type scopeResource struct {
	constructed *int
	committed   *int
}

// Scenario 4: transaction retry rebuilds scope. The transaction handler
// constructs a fresh scopeResource on every invocation; an event handler
// that returns TransactionRetry once then succeeds must cause exactly two
// constructions and one commit.
func TestScenarioTransactionRetryRebuildsScope(t *testing.T) {
	registry := NewHandlerRegistry()
	var attempt int
	AddHandler(registry, "component_A", "SwapEvent", func(ctx context.Context, hctx HandlerContext[*int, *scopeResource], payload []byte) error {
		attempt++
		if attempt == 1 {
			return TransactionRetry(errors.New("deadlock"))
		}
		return nil
	})

	constructed, committed := 0, 0
	handler := func(ctx context.Context, hctx TransactionHandlerContext[*int, *scopeResource]) error {
		constructed++
		scope := &scopeResource{constructed: &constructed, committed: &committed}
		if err := hctx.ProcessEvents(ctx, scope); err != nil {
			return err
		}
		committed++
		return nil
	}

	src, sender := channel.New(4)
	sender <- Transaction{
		StateVersion: 1,
		Events: []Event{
			{Name: "SwapEvent", Emitter: Emitter{Kind: EmitterMethod, EntityAddress: "component_A", EntityType: EntityGlobalGenericComponent}},
		},
	}
	close(sender)

	p := NewTransactionProcessor[*int, *scopeResource](src, registry, new(int))
	p.Handler = handler
	p.Logger = NoopLogger{}
	p.TransactionRetryDelay = 0

	if err := runProcessor(t, p); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if constructed != 2 {
		t.Fatalf("constructed=%d, want 2", constructed)
	}
	if committed != 1 {
		t.Fatalf("committed=%d, want 1", committed)
	}
}

// Scenario 5: native dispatch. A native handler must be reached without
// ever consulting the userspace table.
func TestScenarioNativeDispatch(t *testing.T) {
	registry := NewHandlerRegistry()
	var calls int
	SetNativeHandler(registry, NativeSetMetadata, func(ctx context.Context, hctx HandlerContext[*int, struct{}], payload []byte) error {
		calls++
		return nil
	})

	src, sender := channel.New(4)
	sender <- Transaction{
		StateVersion: 1,
		Events: []Event{
			{Name: "SetMetadataEvent", Emitter: Emitter{Kind: EmitterMethod, EntityAddress: "any_entity", ObjectModuleID: ModuleMetadata, EntityType: EntityGlobalAccount}},
		},
	}
	close(sender)

	p := NewTransactionProcessor[*int, struct{}](src, registry, new(int))
	p.Logger = NoopLogger{}

	if err := runProcessor(t, p); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("native handler invoked %d times, want 1", calls)
	}
}

// Scenario 6: backpressure. With a bounded channel of capacity 4, a
// producer that never finds a consumer may deliver no more than 4
// transactions before blocking.
func TestScenarioBackpressure(t *testing.T) {
	_, sender := channel.New(4)

	for i := 0; i < 4; i++ {
		select {
		case sender <- Transaction{StateVersion: uint64(i)}:
		default:
			t.Fatalf("send %d blocked, want buffered capacity to absorb it", i)
		}
	}

	select {
	case sender <- Transaction{StateVersion: 4}:
		t.Fatal("5th send should have blocked at capacity 4")
	default:
	}
}

func TestUnrecoverableTerminatesProcessor(t *testing.T) {
	registry := NewHandlerRegistry()
	AddHandler(registry, "component_A", "SwapEvent", func(ctx context.Context, hctx HandlerContext[*int, struct{}], payload []byte) error {
		return Unrecoverable(errors.New("fatal"))
	})

	src, sender := channel.New(4)
	sender <- Transaction{
		StateVersion: 1,
		Events: []Event{
			{Name: "SwapEvent", Emitter: Emitter{Kind: EmitterMethod, EntityAddress: "component_A", EntityType: EntityGlobalGenericComponent}},
		},
	}
	close(sender)

	logger := &testLogger{}
	p := NewTransactionProcessor[*int, struct{}](src, registry, new(int))
	p.Logger = logger

	err := runProcessor(t, p)
	if err == nil {
		t.Fatal("expected Run to return an error")
	}
	he, ok := AsHandlerError(err)
	if !ok || he.Kind != KindUnrecoverable {
		t.Fatalf("expected KindUnrecoverable, got %v", err)
	}
	if logger.unrecoverable == nil {
		t.Fatal("expected UnrecoverableError hook to be called")
	}
}
