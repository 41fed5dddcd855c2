// Package engine computes implication proposals from parsed tags and
// assembles them into submission-ready request groups. It is pure
// computation: no I/O, no shared state between series.
package engine

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	autoimply "github.com/boorubot/autoimply"
	"github.com/boorubot/autoimply/series"
)

// Deriver computes the candidate implication set for one series.
type Deriver struct {
	cfg series.Config
	log *zap.Logger

	// Meta optionally supplies site metadata keyed by raw tag name.
	// Children that already imply something are skipped, and deprecated
	// tags are never chosen as parents.
	Meta map[string]autoimply.Tag

	lineBlacklist      map[string]bool
	qualifierBlacklist map[string]bool
}

// NewDeriver creates a deriver for the given series config.
func NewDeriver(cfg series.Config, log *zap.Logger) *Deriver {
	if log == nil {
		log = zap.NewNop()
	}

	lines := make(map[string]bool, len(cfg.LineBlacklist))
	for _, line := range cfg.LineBlacklist {
		lines[line] = true
	}
	qualifiers := make(map[string]bool, len(cfg.QualifierBlacklist))
	for _, q := range cfg.QualifierBlacklist {
		qualifiers[strings.Trim(q, "()")] = true
	}

	return &Deriver{
		cfg:                cfg,
		log:                log,
		lineBlacklist:      lines,
		qualifierBlacklist: qualifiers,
	}
}

// Derive computes the implication set for the parsed tags of one series.
// The result contains no duplicate pairs, no self-implications, and at
// most one parent per child (the most specific surviving one). Groups
// whose edges would form a cycle are dropped entirely; this is a
// defensive check, the subset ordering makes cycles unreachable.
func (d *Deriver) Derive(tags []autoimply.ParsedTag) []autoimply.Implication {
	groups := make(map[string][]autoimply.ParsedTag)
	for _, pt := range tags {
		groups[pt.BaseName] = append(groups[pt.BaseName], pt)
	}

	var result []autoimply.Implication
	for base, members := range groups {
		imps := d.deriveGroup(members)
		if hasCycle(imps) {
			d.log.Error("implication cycle detected, skipping group",
				zap.String("series", d.cfg.Name),
				zap.String("base_name", base))
			continue
		}
		result = append(result, imps...)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Child.Raw < result[j].Child.Raw })
	return result
}

func (d *Deriver) deriveGroup(members []autoimply.ParsedTag) []autoimply.Implication {
	var imps []autoimply.Implication
	for _, child := range members {
		if !child.IsCostume() {
			continue
		}
		if d.skipChild(child) {
			continue
		}

		parent, ambiguous, ok := d.pickParent(child, members)
		if !ok {
			continue
		}
		imps = append(imps, autoimply.Implication{
			Child:         child,
			Parent:        parent,
			AmbiguousWith: ambiguous,
		})
	}
	return imps
}

func (d *Deriver) skipChild(child autoimply.ParsedTag) bool {
	if meta, ok := d.Meta[child.Raw]; ok && meta.HasAntecedents {
		return true
	}
	for _, q := range child.Qualifiers {
		if d.qualifierBlacklist[strings.Trim(q, "()")] {
			return true
		}
	}
	return false
}

// pickParent selects the most specific surviving parent for a child among
// its group members. Candidates whose qualifier set is not a proper subset
// of the child's, that live under a different series marker, that are
// deprecated, or whose implication line is blacklisted are discarded.
// When allow_sub_implications is off only the bare base tag qualifies.
func (d *Deriver) pickParent(child autoimply.ParsedTag, members []autoimply.ParsedTag) (autoimply.ParsedTag, []string, bool) {
	var candidates []autoimply.ParsedTag
	for _, b := range members {
		if b.Raw == child.Raw || b.SeriesQualifier != child.SeriesQualifier {
			continue
		}
		if b.Specificity() >= child.Specificity() || !qualifierSubset(b, child) {
			continue
		}
		if !d.cfg.AllowSubImplications && b.Specificity() > 0 {
			continue
		}
		if meta, ok := d.Meta[b.Raw]; ok && meta.IsDeprecated {
			continue
		}
		if d.lineBlacklist[child.Raw+" -> "+b.Raw] {
			continue
		}
		candidates = append(candidates, b)
	}
	if len(candidates) == 0 {
		return autoimply.ParsedTag{}, nil, false
	}

	// Most specific first; names break ties deterministically.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Specificity() != candidates[j].Specificity() {
			return candidates[i].Specificity() > candidates[j].Specificity()
		}
		return candidates[i].Raw < candidates[j].Raw
	})

	parent := candidates[0]
	var ambiguous []string
	for _, c := range candidates[1:] {
		if c.Specificity() == parent.Specificity() {
			ambiguous = append(ambiguous, c.Raw)
		}
	}
	return parent, ambiguous, true
}

// qualifierSubset reports whether every qualifier token of b also appears
// in a.
func qualifierSubset(b, a autoimply.ParsedTag) bool {
	have := make(map[string]int, len(a.Qualifiers))
	for _, q := range a.Qualifiers {
		have[q]++
	}
	for _, q := range b.Qualifiers {
		if have[q] == 0 {
			return false
		}
		have[q]--
	}
	return true
}

// hasCycle reports whether following child → parent edges revisits a tag.
func hasCycle(imps []autoimply.Implication) bool {
	parent := make(map[string]string, len(imps))
	for _, im := range imps {
		if im.Child.Raw == im.Parent.Raw {
			return true
		}
		parent[im.Child.Raw] = im.Parent.Raw
	}
	for start := range parent {
		seen := map[string]bool{start: true}
		for cur, ok := parent[start]; ok; cur, ok = parent[cur] {
			if seen[cur] {
				return true
			}
			seen[cur] = true
		}
	}
	return false
}
