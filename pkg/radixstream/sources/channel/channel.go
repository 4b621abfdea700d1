// Package channel provides an in-process TransactionStream for tests and
// other programmatic injection: callers push transactions directly onto
// the returned sender, no background task is ever spawned.
package channel

import (
	"context"
	"fmt"

	"github.com/ociswap/radixstream/pkg/radixstream"
)

// Source is a TransactionStream backed by a plain Go channel. Unlike the
// other source adapters it never starts a goroutine; the caller is its own
// producer.
type Source struct {
	ch      chan radixstream.Transaction
	started bool
}

// New returns a Source with the given channel capacity and the sender half
// of its channel. Feed transactions to the sender directly; close it to
// signal clean termination to the processor.
func New(capacity int) (*Source, chan<- radixstream.Transaction) {
	ch := make(chan radixstream.Transaction, capacity)
	return &Source{ch: ch}, ch
}

// Start returns the receiving end of the channel. It is single-use:
// calling it a second time panics, since the contract this type stands in
// for never spawns a second producer to protect against.
func (s *Source) Start(_ context.Context) (<-chan radixstream.Transaction, error) {
	if s.started {
		panic(fmt.Errorf("radixstream/sources/channel: Start called twice on the same Source"))
	}
	s.started = true
	return s.ch, nil
}

// Stop is a no-op: there is no producer task to abort. Closing the sender
// returned by New is how a caller signals termination.
func (s *Source) Stop() {}
