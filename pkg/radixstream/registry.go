package radixstream

import (
	"context"
	"fmt"
	"reflect"
)

// dispatchContext is the type-erased argument passed to every stored
// handler. Handle[S, C] re-hydrates it into a typed HandlerContext[S, C]
// at the call boundary, so the registry itself never needs to know S or C.
type dispatchContext struct {
	Transaction *Transaction
	Event       *Event
	EventIndex  int
	Registry    *HandlerRegistry
	State       any
	Scoped      any
}

// HandlerContext is the typed view a registered handler receives: the
// user's application state, the per-transaction scoped resource (e.g. a
// database transaction), and positional information about the event being
// dispatched.
type HandlerContext[S any, C any] struct {
	State       S
	Scoped      C
	Transaction *Transaction
	Event       *Event
	EventIndex  int
	Registry    *HandlerRegistry
}

// erasedHandler is the boxed form every handler is stored as once Handle
// has closed over its concrete (S, C) pair.
type erasedHandler func(ctx context.Context, dc dispatchContext, payload []byte) error

// Handle adapts an ordinary typed handler function into the registry's
// erased storage form. This is the Go stand-in for a macro that would
// otherwise rewrite a plain function into a handler value: the generic
// parameters close over the static state and scoped-context types, and the
// payload is handed to the caller undecoded, exactly as it arrived on the
// wire.
func Handle[S any, C any](fn func(ctx context.Context, hctx HandlerContext[S, C], payload []byte) error) erasedHandler {
	return func(ctx context.Context, dc dispatchContext, payload []byte) error {
		state, ok := dc.State.(S)
		if !ok {
			panic(fmt.Sprintf("radixstream: handler state type mismatch: expected %T, got %T", state, dc.State))
		}
		scoped, ok := dc.Scoped.(C)
		if !ok {
			panic(fmt.Sprintf("radixstream: handler scoped-context type mismatch: expected %T, got %T", scoped, dc.Scoped))
		}
		return fn(ctx, HandlerContext[S, C]{
			State:       state,
			Scoped:      scoped,
			Transaction: dc.Transaction,
			Event:       dc.Event,
			EventIndex:  dc.EventIndex,
			Registry:    dc.Registry,
		}, payload)
	}
}

type handlerKey struct {
	address string
	name    string
}

// HandlerRegistry is a type-erased store of user handlers keyed by
// (emitter-address, event-name), plus a NativeEventKind-keyed table for
// well-known ledger primitives. All handlers stored in one registry must
// share the same (state, scoped-context) signature fingerprint; this is
// enforced at runtime since the registry's value-level API cannot itself
// carry that pair as a compile-time parameter (see AddHandler,
// SetNativeHandler).
//
// Dispatch is strictly sequential (the EventProcessor never runs two
// handlers concurrently), so the registry needs no internal locking even
// though handlers are free to mutate it mid-stream.
type HandlerRegistry struct {
	userspace   map[handlerKey]erasedHandler
	native      map[NativeEventKind]erasedHandler
	fingerprint reflect.Type
}

// NewHandlerRegistry returns an empty registry. Its signature fingerprint
// is established by the first call to AddHandler or SetNativeHandler.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		userspace: make(map[handlerKey]erasedHandler),
		native:    make(map[NativeEventKind]erasedHandler),
	}
}

func fingerprintOf[S any, C any]() reflect.Type {
	return reflect.TypeFor[struct {
		s S
		c C
	}]()
}

// checkFingerprint records fp on first use and panics if a later call
// supplies a different one. A mismatch means two different (state,
// scoped-context) pairs were used against the same registry, which the
// contract treats as a programmer error rather than a recoverable failure.
func (r *HandlerRegistry) checkFingerprint(fp reflect.Type) {
	if r.fingerprint == nil {
		r.fingerprint = fp
		return
	}
	if r.fingerprint != fp {
		panic(fmt.Sprintf("radixstream: handler signature mismatch: registry was established with %s, got %s", r.fingerprint, fp))
	}
}

// AddHandler inserts or replaces the handler dispatched for events named
// name emitted by address. fn's (S, C) pair must match every other handler
// already registered in r.
func AddHandler[S any, C any](r *HandlerRegistry, address, name string, fn func(ctx context.Context, hctx HandlerContext[S, C], payload []byte) error) {
	r.checkFingerprint(fingerprintOf[S, C]())
	r.userspace[handlerKey{address: address, name: name}] = Handle(fn)
}

// SetNativeHandler inserts or replaces the handler dispatched for the
// given well-known native event kind.
func SetNativeHandler[S any, C any](r *HandlerRegistry, kind NativeEventKind, fn func(ctx context.Context, hctx HandlerContext[S, C], payload []byte) error) {
	r.checkFingerprint(fingerprintOf[S, C]())
	r.native[kind] = Handle(fn)
}

// HandlerExists reports whether any registered handler matches event,
// following the three-step lookup policy: userspace lookup on a Function
// emitter's package address, userspace lookup on a Method emitter's entity
// address when the module is Main and the entity is a generic component,
// and otherwise native resolution.
func (r *HandlerRegistry) HandlerExists(event Event) bool {
	_, ok := r.lookup(event)
	return ok
}

// lookup implements the §4.2 handler-exists/dispatch policy in one place,
// returning the erased handler alongside the existence bit so callers that
// need both (the EventProcessor) make one pass.
func (r *HandlerRegistry) lookup(event Event) (erasedHandler, bool) {
	e := event.Emitter
	if e.Kind == EmitterFunction {
		h, ok := r.userspace[handlerKey{address: e.PackageAddress, name: event.Name}]
		return h, ok
	}
	if e.ObjectModuleID == ModuleMain && isGenericComponent(e.EntityType) {
		h, ok := r.userspace[handlerKey{address: e.EntityAddress, name: event.Name}]
		return h, ok
	}
	kind, err := Resolve(event.Name, e.EntityType)
	if err != nil {
		return nil, false
	}
	h, ok := r.native[kind]
	return h, ok
}

func isGenericComponent(t EntityType) bool {
	return t == EntityGlobalGenericComponent || t == EntityInternalGenericComponent
}
