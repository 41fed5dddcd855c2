package hooks

import (
	"context"
	"errors"
	"testing"
)

func TestChainHooks_CallsAllInOrder(t *testing.T) {
	var calls []string
	mk := func(name string) Hooks {
		return FuncHooks{
			OnImplicationsDerivedFunc: func(ctx context.Context, e ImplicationsDerivedEvent) error {
				calls = append(calls, name)
				return nil
			},
		}
	}
	ch := ChainHooks{mk("first"), mk("second"), mk("third")}

	if err := ch.OnImplicationsDerived(context.Background(), ImplicationsDerivedEvent{Series: "blue_archive"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(calls) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(calls))
	}
	for i, name := range want {
		if calls[i] != name {
			t.Errorf("call %d: expected %q, got %q", i, name, calls[i])
		}
	}
}

func TestChainHooks_StopsOnError(t *testing.T) {
	boom := errors.New("hook failed")
	var secondCalled bool
	ch := ChainHooks{
		FuncHooks{OnSeriesFailedFunc: func(ctx context.Context, e SeriesFailedEvent) error {
			return boom
		}},
		FuncHooks{OnSeriesFailedFunc: func(ctx context.Context, e SeriesFailedEvent) error {
			secondCalled = true
			return nil
		}},
	}

	err := ch.OnSeriesFailed(context.Background(), SeriesFailedEvent{Series: "kantai_collection"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the first hook's error, got %v", err)
	}
	if secondCalled {
		t.Error("second hook should not run after a failure")
	}
}

func TestFuncHooks_NilFuncsAreNoOps(t *testing.T) {
	var fh FuncHooks
	ctx := context.Background()

	if err := fh.OnImplicationsDerived(ctx, ImplicationsDerivedEvent{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := fh.OnRequestSubmitted(ctx, RequestSubmittedEvent{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := fh.OnSeriesFailed(ctx, SeriesFailedEvent{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
