package runner

import (
	"fmt"
	"strings"
	"time"

	autoimply "github.com/boorubot/autoimply"
	"github.com/boorubot/autoimply/series"
)

// BotDisclaimer is appended to every BUR reason so reviewers know the
// request was generated automatically.
const BotDisclaimer = "[i]This is an automated request. Feel free to reject it if anything looks off.[/i]"

// RunReport summarizes one full run.
type RunReport struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Series    []SeriesReport
}

// SeriesReport summarizes the processing of one series.
type SeriesReport struct {
	Series string

	// TagCount is the number of tags fetched (after the grep filter).
	TagCount int

	// Derived is the number of implications the deriver produced.
	Derived int

	// Groups is the number of request groups after filtering existing
	// implications.
	Groups int

	// Submitted lists the requests filed, including dry runs.
	Submitted []autoimply.SubmissionResult

	// Deferred counts implications held back because the pending request
	// budget ran out mid-series.
	Deferred int

	// Ambiguous lists implications that had equally specific alternative
	// parents, rendered for manual review.
	Ambiguous []string

	// Wikiless lists child tags skipped because they have no wiki page.
	Wikiless []string

	// ForeignTags lists child tags dropped because their related
	// copyrights do not include the series.
	ForeignTags []string

	// Err is set when the series failed; the other fields then cover
	// whatever progress was made before the failure.
	Err error
}

// burReason renders the dtext reason for one request group.
func burReason(cfg series.Config, group autoimply.RequestGroup) string {
	var b strings.Builder
	if group.Key != "" && len(group.Implications) > 1 {
		fmt.Fprintf(&b, "Costume implications for the [b]%s[/b] variants of %s characters.\n\n", group.Key, cfg.Name)
	} else {
		fmt.Fprintf(&b, "Costume implication for a %s character.\n\n", cfg.Name)
	}
	for _, im := range group.Implications {
		fmt.Fprintf(&b, "* [[%s]] -> [[%s]]\n", im.Child.Raw, im.Parent.Raw)
	}
	b.WriteString("\n")
	b.WriteString(BotDisclaimer)
	return b.String()
}

// Dtext renders the run report for posting to the forum.
func (r *RunReport) Dtext() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Implication run finished in %s.\n", r.Duration.Round(time.Second))
	for _, sr := range r.Series {
		fmt.Fprintf(&b, "\nh4. %s\n\n", sr.Series)
		if sr.Err != nil {
			fmt.Fprintf(&b, "Processing failed: %v\n", sr.Err)
			continue
		}
		fmt.Fprintf(&b, "%d tags scanned, %d implications derived, %d requests filed.\n",
			sr.TagCount, sr.Derived, len(sr.Submitted))
		if sr.Deferred > 0 {
			fmt.Fprintf(&b, "%d implications deferred to the next run (pending request budget).\n", sr.Deferred)
		}
		if len(sr.Ambiguous) > 0 {
			b.WriteString(expandSection("Ambiguous parents, needs manual review", sr.Ambiguous))
		}
		if len(sr.Wikiless) > 0 {
			b.WriteString(expandSection("Skipped, no wiki page", wikiLinks(sr.Wikiless)))
		}
		if len(sr.ForeignTags) > 0 {
			b.WriteString(expandSection("Skipped, copyright mismatch", wikiLinks(sr.ForeignTags)))
		}
	}
	return b.String()
}

// String renders a compact log summary.
func (r *RunReport) String() string {
	var parts []string
	for _, sr := range r.Series {
		if sr.Err != nil {
			parts = append(parts, fmt.Sprintf("%s: failed (%v)", sr.Series, sr.Err))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %d tags, %d derived, %d submitted",
			sr.Series, sr.TagCount, sr.Derived, len(sr.Submitted)))
	}
	return strings.Join(parts, "; ")
}

// expandSection renders a collapsed dtext block with one item per line.
func expandSection(title string, items []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n[expand=%s]\n", title)
	for _, item := range items {
		fmt.Fprintf(&b, "* %s\n", item)
	}
	b.WriteString("[/expand]\n")
	return b.String()
}

func wikiLinks(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "[[" + n + "]]"
	}
	return out
}
