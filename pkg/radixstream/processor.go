package radixstream

import (
	"context"
	"time"
)

// defaultEventRetryDelay and defaultTransactionRetryDelay are the retry
// delays NewTransactionProcessor sets. A delay set to zero afterwards is
// kept as is and means retrying without sleeping.
const (
	defaultEventRetryDelay       = time.Second
	defaultTransactionRetryDelay = 5 * time.Second
)

// eventProcessor drives one transaction's events through the registry,
// enforcing the event-level retry loop described in §4.4. It is
// unexported: callers interact with it only through the ProcessEvents
// closure handed to a TransactionHandler, never directly.
type eventProcessor[S any, C any] struct {
	retryDelay time.Duration
	logger     Logger
}

// processEvents implements the EventProcessor algorithm: for each event in
// source order, skip if no handler is registered, otherwise invoke the
// handler and retry it in place on EventRetry. TransactionRetry and
// Unrecoverable propagate unchanged; event i+1 never starts before event i
// has returned success or escalated.
func (ep *eventProcessor[S, C]) processEvents(ctx context.Context, state S, registry *HandlerRegistry, tx *Transaction, scoped C) error {
	for i := range tx.Events {
		event := &tx.Events[i]
		handler, ok := registry.lookup(*event)
		ep.logger.ReceiveEvent(ctx, tx, event, i, ok, false)
		if !ok {
			ep.logger.FinishEvent(ctx, tx, event, i, false)
			continue
		}

		isRetry := false
		for {
			if isRetry {
				ep.logger.ReceiveEvent(ctx, tx, event, i, true, true)
			}
			dc := dispatchContext{
				Transaction: tx,
				Event:       event,
				EventIndex:  i,
				Registry:    registry,
				State:       state,
				Scoped:      scoped,
			}
			err := handler(ctx, dc, event.Payload)
			if err == nil {
				ep.logger.FinishEvent(ctx, tx, event, i, true)
				break
			}

			he, ok := AsHandlerError(err)
			if !ok {
				return Unrecoverable(err)
			}
			if he.Kind != KindEventRetry {
				// TransactionRetry or Unrecoverable: propagate unchanged.
				return err
			}

			ep.logger.EventRetryError(ctx, tx, event, he.Cause, ep.retryDelay)
			if sleepErr := sleepCtx(ctx, ep.retryDelay); sleepErr != nil {
				return sleepErr
			}
			isRetry = true
		}
	}
	return nil
}

// TransactionHandlerContext is passed to a TransactionHandler. ProcessEvents
// runs the event-level retry loop over the transaction's events using the
// scoped resource supplied by the caller; it is the only way a handler
// reaches the EventProcessor.
type TransactionHandlerContext[S any, C any] struct {
	State       S
	Transaction *Transaction
	Registry    *HandlerRegistry

	processEvents func(ctx context.Context, scoped C) error
}

// ProcessEvents drives the transaction's events through their registered
// handlers with scoped threaded into every event handler invocation.
func (t TransactionHandlerContext[S, C]) ProcessEvents(ctx context.Context, scoped C) error {
	return t.processEvents(ctx, scoped)
}

// TransactionHandler owns a scoped resource's lifecycle (construct, pass
// to ProcessEvents, commit or roll back) for one transaction. Returning
// TransactionRetry re-invokes the handler from scratch, including every
// event reached during the previous attempt; the handler is expected to
// construct a fresh scoped resource on each invocation.
type TransactionHandler[S any, C any] func(ctx context.Context, hctx TransactionHandlerContext[S, C]) error

// DefaultTransactionHandler returns the built-in handler used when a
// TransactionProcessor is not given one explicitly: it calls ProcessEvents
// with the zero value of C, letting callers that only need event handlers
// skip writing a transaction handler entirely.
func DefaultTransactionHandler[S any, C any]() TransactionHandler[S, C] {
	return func(ctx context.Context, hctx TransactionHandlerContext[S, C]) error {
		var zero C
		return hctx.ProcessEvents(ctx, zero)
	}
}

// TransactionProcessor owns the user state and the registry, consumes
// transactions from a TransactionStream, and enforces the transaction-level
// retry loop described in §4.5.
type TransactionProcessor[S any, C any] struct {
	Stream   TransactionStream
	Registry *HandlerRegistry
	State    S
	Handler  TransactionHandler[S, C]
	Logger   Logger

	EventRetryDelay       time.Duration
	TransactionRetryDelay time.Duration
}

// NewTransactionProcessor constructs a processor, back-filling zero-valued
// fields with defaults the way the teacher's newEventStore back-fills an
// EventStoreConfig.
func NewTransactionProcessor[S any, C any](stream TransactionStream, registry *HandlerRegistry, state S) *TransactionProcessor[S, C] {
	return &TransactionProcessor[S, C]{
		Stream:                stream,
		Registry:              registry,
		State:                 state,
		Logger:                NewDefaultLogger(0),
		EventRetryDelay:       defaultEventRetryDelay,
		TransactionRetryDelay: defaultTransactionRetryDelay,
	}
}

// Run starts the stream, consumes transactions until the stream closes or
// ctx is canceled, and returns the first Unrecoverable error encountered.
// A clean stream closure returns nil. At most two long-lived goroutines
// exist for the duration of Run: the stream's own producer (the channel
// source has none), and the periodic-report goroutine started here.
func (p *TransactionProcessor[S, C]) Run(ctx context.Context) error {
	if p.Logger == nil {
		p.Logger = NoopLogger{}
	}
	handler := p.Handler
	if handler == nil {
		handler = DefaultTransactionHandler[S, C]()
	}

	ch, err := p.Stream.Start(ctx)
	if err != nil {
		return err
	}
	defer p.Stream.Stop()

	reportCtx, cancelReport := context.WithCancel(ctx)
	reportDone := make(chan struct{})
	go p.runPeriodicReport(reportCtx, reportDone)
	defer func() {
		cancelReport()
		<-reportDone
	}()

	ep := &eventProcessor[S, C]{retryDelay: p.EventRetryDelay, logger: p.Logger}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tx, ok := <-ch:
			if !ok {
				return nil
			}
			if err := p.processTransaction(ctx, &tx, handler, ep); err != nil {
				p.Logger.UnrecoverableError(ctx, err)
				return err
			}
		}
	}
}

// processTransaction implements the transaction-retry loop: compute
// whether any event is of interest, invoke the transaction handler, and on
// TransactionRetry sleep and re-invoke from scratch.
func (p *TransactionProcessor[S, C]) processTransaction(ctx context.Context, tx *Transaction, handler TransactionHandler[S, C], ep *eventProcessor[S, C]) error {
	handling := handlerExistsForTransaction(p.Registry, tx)
	isRetry := false

	for {
		p.Logger.ReceiveTransaction(ctx, tx, handling, isRetry)

		if !handling {
			p.Logger.FinishTransaction(ctx, tx, handling)
			return nil
		}

		hctx := TransactionHandlerContext[S, C]{
			State:       p.State,
			Transaction: tx,
			Registry:    p.Registry,
			processEvents: func(ctx context.Context, scoped C) error {
				return ep.processEvents(ctx, p.State, p.Registry, tx, scoped)
			},
		}

		err := asTransactionError(handler(ctx, hctx))
		if err == nil {
			p.Logger.FinishTransaction(ctx, tx, handling)
			return nil
		}

		he, ok := AsHandlerError(err)
		if !ok {
			return err
		}
		if he.Kind == KindTransactionRetry {
			p.Logger.TransactionRetryError(ctx, tx, he.Cause, p.TransactionRetryDelay)
			if sleepErr := sleepCtx(ctx, p.TransactionRetryDelay); sleepErr != nil {
				return sleepErr
			}
			isRetry = true
			continue
		}
		return err // Unrecoverable
	}
}

func (p *TransactionProcessor[S, C]) runPeriodicReport(ctx context.Context, done chan struct{}) {
	defer close(done)
	interval := p.Logger.PeriodicReportInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Logger.PeriodicReport(ctx)
		}
	}
}

// handlerExistsForTransaction reports whether any event in tx matches a
// registered handler, short-circuiting the transaction handler invocation
// when none do.
func handlerExistsForTransaction(registry *HandlerRegistry, tx *Transaction) bool {
	for i := range tx.Events {
		if registry.HandlerExists(tx.Events[i]) {
			return true
		}
	}
	return false
}

// sleepCtx sleeps for d or returns ctx.Err() if ctx is canceled first. A
// non-positive d returns immediately.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
