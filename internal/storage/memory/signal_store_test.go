package memory

import (
	"context"
	"testing"

	"solana-signal-pipeline/internal/domain"
)

func TestSignalStore_InsertAndNotify(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	id, err := store.InsertSignal(ctx, &domain.EmittedSignal{Mint: "mint1", Symbol: "ONE", SignalTS: 1000})
	if err != nil {
		t.Fatalf("InsertSignal failed: %v", err)
	}

	unnotified, err := store.UnnotifiedSignals(ctx)
	if err != nil {
		t.Fatalf("UnnotifiedSignals failed: %v", err)
	}
	if len(unnotified) != 1 {
		t.Fatalf("expected 1 unnotified signal, got %d", len(unnotified))
	}

	if err := store.MarkNotified(ctx, id); err != nil {
		t.Fatalf("MarkNotified failed: %v", err)
	}

	unnotified, err = store.UnnotifiedSignals(ctx)
	if err != nil {
		t.Fatalf("UnnotifiedSignals failed: %v", err)
	}
	if len(unnotified) != 0 {
		t.Errorf("expected 0 unnotified signals after MarkNotified, got %d", len(unnotified))
	}
}

func TestSignalStore_UnnotifiedOrderedBySignalTS(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	for _, ts := range []int64{3000, 1000, 2000} {
		if _, err := store.InsertSignal(ctx, &domain.EmittedSignal{Mint: "mint1", SignalTS: ts}); err != nil {
			t.Fatalf("InsertSignal failed: %v", err)
		}
	}

	unnotified, err := store.UnnotifiedSignals(ctx)
	if err != nil {
		t.Fatalf("UnnotifiedSignals failed: %v", err)
	}
	for i := 1; i < len(unnotified); i++ {
		if unnotified[i-1].SignalTS > unnotified[i].SignalTS {
			t.Fatalf("expected ascending signal_ts order, got %v", unnotified)
		}
	}
}
