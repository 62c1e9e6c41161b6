package poller

import (
	"context"
	"testing"
	"time"
)

func TestBackoffStartsAtInitial(t *testing.T) {
	b := NewBackoff()
	if got := b.Current(); got != backoffInitial {
		t.Fatalf("current = %v, want %v", got, backoffInitial)
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := NewBackoff()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	want := backoffInitial
	for i := 0; i < 10; i++ {
		_ = b.Sleep(ctx)
		want *= 2
		if want > backoffCap {
			want = backoffCap
		}
		if got := b.Current(); got != want {
			t.Fatalf("after %d sleeps, current = %v, want %v", i+1, got, want)
		}
	}
	if b.Current() != backoffCap {
		t.Fatalf("current = %v, want cap %v", b.Current(), backoffCap)
	}
}

func TestBackoffResetReturnsToInitial(t *testing.T) {
	b := NewBackoff()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = b.Sleep(ctx)
	_ = b.Sleep(ctx)
	if b.Current() == backoffInitial {
		t.Fatal("expected current to have advanced past initial")
	}

	b.Reset()
	if got := b.Current(); got != backoffInitial {
		t.Fatalf("after reset, current = %v, want %v", got, backoffInitial)
	}
}

func TestBackoffSleepReturnsNilWhenNotCancelled(t *testing.T) {
	b := &Backoff{current: 5 * time.Millisecond}
	if err := b.Sleep(context.Background()); err != nil {
		t.Fatalf("sleep: %v", err)
	}
}

func TestBackoffSleepReturnsCtxErrOnCancellation(t *testing.T) {
	b := NewBackoff()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Sleep(ctx); err == nil {
		t.Fatal("expected ctx.Err() from a cancelled context")
	}
}
