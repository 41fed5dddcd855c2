package sources

import (
	"context"
	"time"

	"go.uber.org/zap"

	autoimply "github.com/boorubot/autoimply"
	"github.com/boorubot/autoimply/series"
	"github.com/boorubot/autoimply/utils"
)

// ResilientConfig configures the resilient source wrapper.
type ResilientConfig struct {
	// Retry configuration
	MaxRetries   uint64
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Logger for API calls.
	Logger *zap.Logger

	// EnableRetry controls whether retry is enabled.
	EnableRetry bool
}

// DefaultResilientConfig returns sensible defaults.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		EnableRetry:  true,
	}
}

// Resilient wraps a Source with retry and call logging. Only read
// operations are retried; retrying a failed submission could file the
// same request twice, so Submitter is left unwrapped.
type Resilient struct {
	source  Source
	config  ResilientConfig
	retryer *utils.Retryer
	log     *zap.Logger
}

// NewResilient creates a new resilient source wrapper.
func NewResilient(source Source, config ResilientConfig) *Resilient {
	r := &Resilient{
		source: source,
		config: config,
		log:    config.Logger,
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if config.EnableRetry {
		r.retryer = utils.NewRetryer(utils.RetryConfig{
			MaxRetries:   config.MaxRetries,
			InitialDelay: config.InitialDelay,
			MaxDelay:     config.MaxDelay,
		})
	}
	return r
}

// WrapWithResilience wraps a source with default resilience configuration.
func WrapWithResilience(source Source, log *zap.Logger) *Resilient {
	cfg := DefaultResilientConfig()
	cfg.Logger = log
	return NewResilient(source, cfg)
}

// Name returns the wrapped source's name.
func (r *Resilient) Name() string {
	return r.source.Name()
}

// FetchTags fetches tags with retry and logging.
func (r *Resilient) FetchTags(ctx context.Context, cfg series.Config) ([]autoimply.Tag, error) {
	start := time.Now()
	tags, err := call(ctx, r, func() ([]autoimply.Tag, error) {
		return r.source.FetchTags(ctx, cfg)
	})
	if err != nil {
		r.logError(ctx, "fetch_tags", cfg.Name, start, err)
		return nil, err
	}
	r.log.Debug("source call succeeded",
		zap.String("source", r.source.Name()),
		zap.String("op", "fetch_tags"),
		zap.String("series", cfg.Name),
		zap.Int("tags", len(tags)),
		zap.Duration("elapsed", time.Since(start)))
	return tags, nil
}

// ExistingImplications fetches existing implications with retry and logging.
func (r *Resilient) ExistingImplications(ctx context.Context, cfg series.Config) (map[autoimply.ImplicationKey]bool, error) {
	start := time.Now()
	existing, err := call(ctx, r, func() (map[autoimply.ImplicationKey]bool, error) {
		return r.source.ExistingImplications(ctx, cfg)
	})
	if err != nil {
		r.logError(ctx, "existing_implications", cfg.Name, start, err)
		return nil, err
	}
	r.log.Debug("source call succeeded",
		zap.String("source", r.source.Name()),
		zap.String("op", "existing_implications"),
		zap.String("series", cfg.Name),
		zap.Int("pairs", len(existing)),
		zap.Duration("elapsed", time.Since(start)))
	return existing, nil
}

// RelatedCopyrights fetches related copyrights with retry and logging.
func (r *Resilient) RelatedCopyrights(ctx context.Context, tag string) ([]string, error) {
	start := time.Now()
	copyrights, err := call(ctx, r, func() ([]string, error) {
		return r.source.RelatedCopyrights(ctx, tag)
	})
	if err != nil {
		r.logError(ctx, "related_copyrights", tag, start, err)
		return nil, err
	}
	return copyrights, nil
}

// Unwrap returns the underlying source.
func (r *Resilient) Unwrap() Source {
	return r.source
}

func call[T any](ctx context.Context, r *Resilient, fn func() (T, error)) (T, error) {
	if r.retryer == nil {
		return fn()
	}
	return utils.DoWithResult(ctx, r.retryer, fn)
}

func (r *Resilient) logError(ctx context.Context, op, subject string, start time.Time, err error) {
	r.log.Warn("source call failed",
		zap.String("source", r.source.Name()),
		zap.String("op", op),
		zap.String("subject", subject),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))
}
