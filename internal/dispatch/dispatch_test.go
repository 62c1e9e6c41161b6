package dispatch

import (
	"context"
	"errors"
	"testing"
)

func TestDispatchRunsSinksInOrder(t *testing.T) {
	reg := NewRegistry()
	var order []int

	reg.On(WeightRead, func(ctx context.Context, payload any) error {
		order = append(order, 1)
		return nil
	})
	reg.On(WeightRead, func(ctx context.Context, payload any) error {
		order = append(order, 2)
		return nil
	})

	if err := reg.Dispatch(context.Background(), WeightRead, nil); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order = %v, want [1 2]", order)
	}
}

func TestDispatchRunsAllSinksEvenAfterError(t *testing.T) {
	reg := NewRegistry()
	ran := false

	reg.On(Error, func(ctx context.Context, payload any) error {
		return errors.New("boom")
	})
	reg.On(Error, func(ctx context.Context, payload any) error {
		ran = true
		return nil
	})

	err := reg.Dispatch(context.Background(), Error, nil)
	if err == nil {
		t.Fatal("expected first sink's error to propagate")
	}
	if !ran {
		t.Fatal("expected second sink to run despite the first sink's error")
	}
}

func TestDispatchUnregisteredKindIsNoop(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Dispatch(context.Background(), Stop, nil); err != nil {
		t.Fatalf("dispatch on empty kind: %v", err)
	}
}

func TestHas(t *testing.T) {
	reg := NewRegistry()
	if reg.Has(Run) {
		t.Fatal("Has should report false before any sink is registered")
	}
	reg.On(Run, func(ctx context.Context, payload any) error { return nil })
	if !reg.Has(Run) {
		t.Fatal("Has should report true once a sink is registered")
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		WeightRead:   "WEIGHT_READ",
		EventChanged: "EVENT_CHANGED",
		Run:          "RUN",
		Stop:         "STOP",
		Error:        "ERROR",
		TimeoutError: "TIMEOUT_ERROR",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
