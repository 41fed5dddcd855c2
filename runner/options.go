package runner

import (
	"go.uber.org/zap"

	autoimply "github.com/boorubot/autoimply"
	"github.com/boorubot/autoimply/hooks"
	"github.com/boorubot/autoimply/metrics"
	"github.com/boorubot/autoimply/series"
	"github.com/boorubot/autoimply/sources"
	"github.com/boorubot/autoimply/store"
)

// Options configures a Runner.
type Options struct {
	// Registry holds the series configurations. Required.
	Registry *series.Registry

	// Source supplies tags and existing implications. Required.
	Source sources.Source

	// Submitter files bulk update requests. Required.
	Submitter sources.Submitter

	// Store is the optional local mirror. When set, mirrored costume tags
	// augment the fetched tag list, already-requested implications are
	// filtered out, and related-copyright lookups are cached.
	Store store.Store

	// Hooks receives processing events. Defaults to NopHooks.
	Hooks hooks.Hooks

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics defaults to unregistered collectors.
	Metrics *metrics.Metrics

	// MaxLinesPerBUR caps the script lines per request. Defaults to
	// DefaultMaxLinesPerBUR.
	MaxLinesPerBUR int

	// ForcePost submits even for series with autopost disabled.
	ForcePost bool

	// Grep, when non-empty, restricts processing to tags containing the
	// substring. Used for focused manual runs.
	Grep string
}

// DefaultOptions returns options with all optional fields defaulted.
func DefaultOptions() Options {
	return Options{
		Hooks:          hooks.NopHooks{},
		Logger:         zap.NewNop(),
		Metrics:        metrics.Nop(),
		MaxLinesPerBUR: autoimply.DefaultMaxLinesPerBUR,
	}
}

func (o *Options) applyDefaults() {
	if o.Hooks == nil {
		o.Hooks = hooks.NopHooks{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Nop()
	}
	if o.MaxLinesPerBUR <= 0 {
		o.MaxLinesPerBUR = autoimply.DefaultMaxLinesPerBUR
	}
}

func (o *Options) validate() error {
	if o.Registry == nil || o.Registry.Len() == 0 {
		return autoimply.ErrNoSeries
	}
	if o.Source == nil {
		return autoimply.ErrSourceNotConfigured
	}
	if o.Submitter == nil {
		return autoimply.ErrSubmitterMissing
	}
	return nil
}
