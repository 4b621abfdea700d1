// Package radixstream consumes an ordered stream of confirmed ledger
// transactions and dispatches the events they carry to user-registered
// handlers, with in-order delivery, a two-level retry state machine, and
// optional per-transaction scoped resources such as a database transaction.
//
// A TransactionStream implementation (see the sources subpackages) produces
// transactions on a bounded channel; a TransactionProcessor consumes that
// channel, resolves handlers for each event through a HandlerRegistry, and
// runs the retry loops described on TransactionProcessor and
// TransactionHandlerContext.ProcessEvents.
package radixstream
