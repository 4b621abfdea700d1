package channel

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/ociswap/radixstream/pkg/radixstream"
)

func TestStartReturnsSenderChannel(t *testing.T) {
	src, sender := New(2)
	ch, err := src.Start(context.Background())
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	sender <- radixstream.Transaction{IntentHash: "txid_" + uuid.NewString(), StateVersion: 1}
	close(sender)

	tx, ok := <-ch
	if !ok {
		t.Fatal("expected a transaction, channel was closed")
	}
	if tx.StateVersion != 1 {
		t.Fatalf("StateVersion = %d, want 1", tx.StateVersion)
	}

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after sender was closed")
	}
}

func TestStartTwicePanics(t *testing.T) {
	src, _ := New(1)
	if _, err := src.Start(context.Background()); err != nil {
		t.Fatalf("first Start returned error: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected second Start to panic")
		}
	}()
	src.Start(context.Background())
}
