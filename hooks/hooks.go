// Package hooks provides the hook interface for observing implication
// processing events. Implement Hooks to receive notifications as series
// are processed and requests are submitted.
package hooks

import (
	"context"
)

// Hooks defines the interface for handling processing events. Returned
// errors are advisory: the runner logs them and continues processing.
type Hooks interface {
	// OnImplicationsDerived is called after derivation for a series.
	OnImplicationsDerived(ctx context.Context, e ImplicationsDerivedEvent) error

	// OnRequestSubmitted is called after each BUR submission (including
	// dry runs).
	OnRequestSubmitted(ctx context.Context, e RequestSubmittedEvent) error

	// OnSeriesFailed is called when processing one series fails.
	OnSeriesFailed(ctx context.Context, e SeriesFailedEvent) error
}

// NopHooks is a no-op implementation of Hooks.
type NopHooks struct{}

func (NopHooks) OnImplicationsDerived(ctx context.Context, e ImplicationsDerivedEvent) error {
	return nil
}

func (NopHooks) OnRequestSubmitted(ctx context.Context, e RequestSubmittedEvent) error {
	return nil
}

func (NopHooks) OnSeriesFailed(ctx context.Context, e SeriesFailedEvent) error {
	return nil
}

// Ensure NopHooks implements Hooks.
var _ Hooks = NopHooks{}

// ChainHooks chains multiple Hooks implementations, calling each in order.
type ChainHooks []Hooks

func (ch ChainHooks) OnImplicationsDerived(ctx context.Context, e ImplicationsDerivedEvent) error {
	for _, h := range ch {
		if err := h.OnImplicationsDerived(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (ch ChainHooks) OnRequestSubmitted(ctx context.Context, e RequestSubmittedEvent) error {
	for _, h := range ch {
		if err := h.OnRequestSubmitted(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (ch ChainHooks) OnSeriesFailed(ctx context.Context, e SeriesFailedEvent) error {
	for _, h := range ch {
		if err := h.OnSeriesFailed(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// FuncHooks allows using functions as hooks.
type FuncHooks struct {
	OnImplicationsDerivedFunc func(ctx context.Context, e ImplicationsDerivedEvent) error
	OnRequestSubmittedFunc    func(ctx context.Context, e RequestSubmittedEvent) error
	OnSeriesFailedFunc        func(ctx context.Context, e SeriesFailedEvent) error
}

func (fh FuncHooks) OnImplicationsDerived(ctx context.Context, e ImplicationsDerivedEvent) error {
	if fh.OnImplicationsDerivedFunc != nil {
		return fh.OnImplicationsDerivedFunc(ctx, e)
	}
	return nil
}

func (fh FuncHooks) OnRequestSubmitted(ctx context.Context, e RequestSubmittedEvent) error {
	if fh.OnRequestSubmittedFunc != nil {
		return fh.OnRequestSubmittedFunc(ctx, e)
	}
	return nil
}

func (fh FuncHooks) OnSeriesFailed(ctx context.Context, e SeriesFailedEvent) error {
	if fh.OnSeriesFailedFunc != nil {
		return fh.OnSeriesFailedFunc(ctx, e)
	}
	return nil
}
