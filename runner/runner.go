// Package runner orchestrates a full implication run: fetch tags for each
// configured series, derive and assemble proposals, and submit them as
// bulk update requests. Series are processed independently; one failing
// series never aborts the others.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	autoimply "github.com/boorubot/autoimply"
	"github.com/boorubot/autoimply/engine"
	"github.com/boorubot/autoimply/hooks"
	"github.com/boorubot/autoimply/pattern"
	"github.com/boorubot/autoimply/series"
	"github.com/boorubot/autoimply/sources"
	"github.com/boorubot/autoimply/utils"
)

var runIDs = utils.NewIDGenerator()

// Runner executes implication runs over the configured series.
type Runner struct {
	opts Options
	log  *zap.Logger
}

// New creates a runner. Registry, Source and Submitter are required.
func New(opts Options) (*Runner, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()
	return &Runner{opts: opts, log: opts.Logger}, nil
}

// stageError tags a series failure with the pipeline stage it occurred in.
type stageError struct {
	Stage string
	Err   error
}

func (e *stageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *stageError) Unwrap() error {
	return e.Err
}

func failStage(stage string, err error) error {
	return &stageError{Stage: stage, Err: err}
}

// Run processes the named series, or every configured series when only is
// empty. Unknown names fail before any processing starts. Individual
// series failures are reported and do not abort the run.
func (r *Runner) Run(ctx context.Context, only []string) (*RunReport, error) {
	configs, err := r.selectSeries(only)
	if err != nil {
		return nil, err
	}

	report := &RunReport{RunID: runIDs.Generate("run"), StartedAt: time.Now()}
	log := r.log.With(zap.String("run_id", report.RunID))
	for _, cfg := range configs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		sr, err := r.RunSeries(ctx, cfg)
		if err != nil {
			stage := "run"
			var se *stageError
			if errors.As(err, &se) {
				stage = se.Stage
			}
			log.Error("series processing failed",
				zap.String("series", cfg.Name),
				zap.String("stage", stage),
				zap.Error(err))
			r.opts.Metrics.SeriesFailed.Inc()
			if herr := r.opts.Hooks.OnSeriesFailed(ctx, hooks.SeriesFailedEvent{
				Series:    cfg.Name,
				Stage:     stage,
				Err:       err,
				Timestamp: time.Now(),
			}); herr != nil {
				log.Warn("series failure hook error", zap.Error(herr))
			}
			if sr == nil {
				sr = &SeriesReport{Series: cfg.Name}
			}
			sr.Err = err
		} else {
			r.opts.Metrics.SeriesProcessed.Inc()
		}
		report.Series = append(report.Series, *sr)
	}

	report.Duration = time.Since(report.StartedAt)
	r.opts.Metrics.RunDuration.Observe(report.Duration.Seconds())
	return report, nil
}

func (r *Runner) selectSeries(only []string) ([]series.Config, error) {
	if len(only) == 0 {
		return r.opts.Registry.All(), nil
	}
	configs := make([]series.Config, 0, len(only))
	for _, name := range only {
		cfg, ok := r.opts.Registry.Find(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", autoimply.ErrSeriesNotFound, name)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// RunSeries processes one series end to end and returns its report.
func (r *Runner) RunSeries(ctx context.Context, cfg series.Config) (*SeriesReport, error) {
	log := r.log.With(zap.String("series", cfg.Name))
	report := &SeriesReport{Series: cfg.Name}

	tags, err := r.opts.Source.FetchTags(ctx, cfg)
	if err != nil {
		return nil, failStage("fetch", err)
	}
	if r.opts.Store != nil {
		tags = r.mirrorChildTags(ctx, tags, log)
	}
	if r.opts.Grep != "" {
		tags = grepTags(tags, r.opts.Grep)
	}
	report.TagCount = len(tags)
	log.Info("fetched tags", zap.Int("count", len(tags)))

	parser, err := pattern.New(cfg)
	if err != nil {
		return nil, failStage("parse", err)
	}
	parsed := parser.ParseAll(tags)

	meta := make(map[string]autoimply.Tag, len(tags))
	for _, t := range tags {
		meta[t.Name] = t
	}

	deriver := engine.NewDeriver(cfg, log)
	deriver.Meta = meta
	imps := deriver.Derive(parsed)
	report.Derived = len(imps)

	r.opts.Metrics.ImplicationsProposed.WithLabelValues(cfg.Name).Add(float64(len(imps)))
	if herr := r.opts.Hooks.OnImplicationsDerived(ctx, hooks.ImplicationsDerivedEvent{
		Series:       cfg.Name,
		Implications: imps,
		TagCount:     len(tags),
		Timestamp:    time.Now(),
	}); herr != nil {
		log.Warn("implications derived hook error", zap.Error(herr))
	}
	for _, im := range imps {
		if len(im.AmbiguousWith) > 0 {
			report.Ambiguous = append(report.Ambiguous,
				im.Line()+" (also: "+strings.Join(im.AmbiguousWith, ", ")+")")
		}
	}
	if len(imps) == 0 {
		return report, nil
	}

	imps = r.vetCopyrights(ctx, cfg, imps, report, log)

	existing, err := r.opts.Source.ExistingImplications(ctx, cfg)
	if err != nil {
		return nil, failStage("existing", err)
	}
	if r.opts.Store != nil {
		requested, err := r.opts.Store.RequestedImplications(ctx)
		if err != nil {
			return nil, failStage("existing", err)
		}
		for key := range requested {
			existing[key] = true
		}
	}

	groups := engine.NewAssembler(cfg).Assemble(imps, existing)
	report.Groups = len(groups)
	if len(groups) == 0 {
		return report, nil
	}

	if err := r.submitGroups(ctx, cfg, groups, meta, report, log); err != nil {
		return report, err
	}
	return report, nil
}

// mirrorChildTags refreshes the tag mirror with the fetched records and
// augments them with costume children the mirror already knows: for every
// fetched base name, mirrored names extending it with an underscore are
// candidate costume tags. Mirror failures leave the fetched list as is.
func (r *Runner) mirrorChildTags(ctx context.Context, tags []autoimply.Tag, log *zap.Logger) []autoimply.Tag {
	if err := r.opts.Store.UpsertTags(ctx, tags); err != nil {
		log.Warn("refreshing tag mirror failed", zap.Error(err))
	}

	seen := make(map[string]bool, len(tags))
	prefixSet := make(map[string]bool)
	for _, t := range tags {
		seen[t.Name] = true
		base := t.Name
		if i := strings.Index(base, "_("); i > 0 {
			base = base[:i]
		}
		prefixSet[base+"_"] = true
	}
	prefixes := make([]string, 0, len(prefixSet))
	for p := range prefixSet {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)

	out := tags
	for _, prefix := range prefixes {
		children, err := r.opts.Store.TagsByPrefix(ctx, prefix)
		if err != nil {
			log.Warn("mirror child lookup failed",
				zap.String("prefix", prefix),
				zap.Error(err))
			return out
		}
		for _, child := range children {
			if seen[child.Name] || child.PostCount <= 0 || child.IsDeprecated {
				continue
			}
			seen[child.Name] = true
			out = append(out, child)
		}
	}
	return out
}

// vetCopyrights drops implications whose child tag is not actually
// associated with the series, according to its related copyright tags.
// A child already carrying the series marker is trusted without a lookup;
// only unmarked tags, typically discovered through wiki links, are vetted.
// Lookup failures keep the implication; vetting is best effort.
func (r *Runner) vetCopyrights(ctx context.Context, cfg series.Config, imps []autoimply.Implication, report *SeriesReport, log *zap.Logger) []autoimply.Implication {
	kept := make([]autoimply.Implication, 0, len(imps))
	for _, im := range imps {
		// SeriesQualifier is only set when the trailing qualifier matched
		// one of the configured markers.
		if im.Child.SeriesQualifier != "" {
			kept = append(kept, im)
			continue
		}
		copyrights, err := r.relatedCopyrights(ctx, im.Child.Raw)
		if err != nil {
			log.Warn("related copyright lookup failed, keeping implication",
				zap.String("tag", im.Child.Raw),
				zap.Error(err))
			kept = append(kept, im)
			continue
		}
		if len(copyrights) == 0 {
			kept = append(kept, im)
			continue
		}
		matched := false
		for _, c := range copyrights {
			if cfg.Matches(c) {
				matched = true
				break
			}
		}
		if matched {
			kept = append(kept, im)
		} else {
			report.ForeignTags = append(report.ForeignTags, im.Child.Raw)
		}
	}
	return kept
}

func (r *Runner) relatedCopyrights(ctx context.Context, tag string) ([]string, error) {
	if r.opts.Store != nil {
		copyrights, ok, err := r.opts.Store.RelatedCopyrights(ctx, tag)
		if err == nil && ok {
			return copyrights, nil
		}
	}
	copyrights, err := r.opts.Source.RelatedCopyrights(ctx, tag)
	if err != nil {
		return nil, err
	}
	if r.opts.Store != nil {
		if err := r.opts.Store.SaveRelatedCopyrights(ctx, tag, copyrights); err != nil {
			r.log.Warn("caching related copyrights failed", zap.String("tag", tag), zap.Error(err))
		}
	}
	return copyrights, nil
}

// submitGroups packs the request groups into BUR scripts and submits them,
// honoring the per-topic pending request budget.
func (r *Runner) submitGroups(ctx context.Context, cfg series.Config, groups []autoimply.RequestGroup, meta map[string]autoimply.Tag, report *SeriesReport, log *zap.Logger) error {
	pending, err := r.opts.Submitter.PendingBURCount(ctx, cfg.TopicID)
	if err != nil {
		return failStage("budget", err)
	}
	budget := cfg.MaxBURsPerTopic - pending
	if budget <= 0 {
		return failStage("budget", fmt.Errorf("%w: %d pending in topic %d",
			autoimply.ErrTooManyBURs, pending, cfg.TopicID))
	}

	autopost := r.opts.ForcePost || cfg.Autopost
	for _, group := range groups {
		submittable := r.filterSubmittable(group, meta, report)
		if len(submittable) == 0 {
			continue
		}

		for start := 0; start < len(submittable); start += r.opts.MaxLinesPerBUR {
			end := min(start+r.opts.MaxLinesPerBUR, len(submittable))
			chunk := autoimply.RequestGroup{Key: group.Key, Implications: submittable[start:end]}

			if budget == 0 {
				report.Deferred += len(chunk.Implications)
				continue
			}

			sub := sources.Submission{
				TopicID: cfg.TopicID,
				Script:  chunk.Script(),
				Reason:  burReason(cfg, chunk),
			}
			result, err := r.opts.Submitter.Submit(ctx, sub, autopost)
			if err != nil {
				return failStage("submit", err)
			}
			budget--

			report.Submitted = append(report.Submitted, result)
			if !result.DryRun {
				r.opts.Metrics.BURsSubmitted.WithLabelValues(cfg.Name).Inc()
			}
			if herr := r.opts.Hooks.OnRequestSubmitted(ctx, hooks.RequestSubmittedEvent{
				Series:    cfg.Name,
				Group:     chunk,
				Result:    result,
				Timestamp: time.Now(),
			}); herr != nil {
				log.Warn("request submitted hook error", zap.Error(herr))
			}
			log.Info("request submitted",
				zap.String("group", chunk.Key),
				zap.Int("lines", len(chunk.Implications)),
				zap.String("script_hash", utils.ScriptHash(sub.Script)),
				zap.Bool("dry_run", result.DryRun))
		}
	}
	return nil
}

// filterSubmittable keeps the implications whose child can actually be
// submitted: the tag needs a wiki page and enough posts to be worth a
// request. Wikiless children are collected for the run report.
func (r *Runner) filterSubmittable(group autoimply.RequestGroup, meta map[string]autoimply.Tag, report *SeriesReport) []autoimply.Implication {
	var out []autoimply.Implication
	for _, im := range group.Implications {
		t, ok := meta[im.Child.Raw]
		if ok && t.PostCount < autoimply.MinPostCount {
			continue
		}
		if ok && !t.HasWiki {
			report.Wikiless = append(report.Wikiless, im.Child.Raw)
			continue
		}
		out = append(out, im)
	}
	return out
}

func grepTags(tags []autoimply.Tag, substr string) []autoimply.Tag {
	out := make([]autoimply.Tag, 0, len(tags))
	for _, t := range tags {
		if strings.Contains(t.Name, substr) {
			out = append(out, t)
		}
	}
	return out
}
