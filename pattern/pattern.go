// Package pattern decomposes costume tags into base name and qualifier
// tokens using an ordered, first-match list of rules. Rule order is
// significant: series-specific rules run before the default rule, and the
// first rule that produces a lossless parse wins. There is no best-match
// heuristic.
package pattern

import (
	"fmt"
	"regexp"
	"strings"

	autoimply "github.com/boorubot/autoimply"
	"github.com/boorubot/autoimply/series"
)

// DefaultCostumePattern recognizes a trailing run of parenthesized
// qualifier groups, e.g. "alice_(swimsuit)_(game)".
const DefaultCostumePattern = `(?P<base_name>[^(]+)(?P<qualifiers>(?:_\(.*\))+)`

// parenToken extracts the individual parenthesized groups from the
// qualifiers capture.
var parenToken = regexp.MustCompile(`\(.*?\)`)

// Rule matches a raw tag string against one costume pattern.
type Rule interface {
	// TryMatch returns the decomposition of the tag and whether the rule
	// matched. A returned ParsedTag has Raw, BaseName, Qualifiers and,
	// when the pattern captures one, ExtraQualifier populated; series
	// marker splitting happens later in the Parser.
	TryMatch(tag string) (autoimply.ParsedTag, bool)
}

// regexRule is a Rule backed by a regular expression with the named
// capture groups base_name, qualifiers and, optionally, extra_qualifier.
type regexRule struct {
	re       *regexp.Regexp
	baseIdx  int
	extraIdx int // -1 when the pattern has no extra_qualifier group
	qualsIdx int
}

// CompileRule compiles a costume pattern into a Rule. The expression is
// anchored to the full tag; a partial match could not round-trip back to
// the original tag name.
func CompileRule(expr string) (Rule, error) {
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return nil, fmt.Errorf("autoimply: compile costume pattern %q: %w", expr, err)
	}

	r := &regexRule{re: re, baseIdx: -1, extraIdx: -1, qualsIdx: -1}
	for i, name := range re.SubexpNames() {
		switch name {
		case "base_name":
			r.baseIdx = i
		case "extra_qualifier":
			r.extraIdx = i
		case "qualifiers":
			r.qualsIdx = i
		}
	}
	if r.baseIdx < 0 || r.qualsIdx < 0 {
		return nil, fmt.Errorf("autoimply: costume pattern %q must capture base_name and qualifiers", expr)
	}
	return r, nil
}

func (r *regexRule) TryMatch(tag string) (autoimply.ParsedTag, bool) {
	m := r.re.FindStringSubmatch(tag)
	if m == nil {
		return autoimply.ParsedTag{}, false
	}

	base := strings.Trim(m[r.baseIdx], "_")

	var qualifiers []string
	extra := ""
	if r.extraIdx >= 0 {
		extra = strings.Trim(m[r.extraIdx], "_")
	}
	if extra != "" {
		qualifiers = append(qualifiers, extra)
	}
	for _, token := range parenToken.FindAllString(m[r.qualsIdx], -1) {
		qualifiers = append(qualifiers, strings.Trim(token, "_"))
	}

	if base == "" || len(qualifiers) == 0 {
		return autoimply.ParsedTag{}, false
	}

	return autoimply.ParsedTag{
		Raw:            tag,
		BaseName:       base,
		Qualifiers:     qualifiers,
		ExtraQualifier: extra,
	}, true
}

// Parser applies a series' ordered rule list to raw tag strings.
type Parser struct {
	rules           []Rule
	markers         []string
	extraQualifiers []string
}

// New builds a parser for one series: the series' extra costume patterns
// in declared order, then the default pattern.
func New(cfg series.Config) (*Parser, error) {
	rules := make([]Rule, 0, len(cfg.ExtraCostumePatterns)+1)
	for _, expr := range cfg.ExtraCostumePatterns {
		rule, err := CompileRule(expr)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	defaultRule, err := CompileRule(DefaultCostumePattern)
	if err != nil {
		return nil, err
	}
	rules = append(rules, defaultRule)

	return &Parser{
		rules:           rules,
		markers:         cfg.Markers(),
		extraQualifiers: cfg.ExtraQualifiers,
	}, nil
}

// Parse decomposes a tag. When no rule matches, the tag is a plain base
// tag: the returned ParsedTag has BaseName equal to the whole tag, no
// qualifiers, and ok is false.
//
// Matches that would not reassemble into the original tag are skipped and
// the next rule is tried, preserving the lossless-parse invariant.
func (p *Parser) Parse(tag string) (autoimply.ParsedTag, bool) {
	for _, rule := range p.rules {
		pt, ok := rule.TryMatch(tag)
		if !ok {
			continue
		}
		p.splitSeriesMarker(&pt)
		p.splitBareQualifiers(&pt)
		if pt.Rejoin() != tag {
			continue
		}
		return pt, true
	}
	return autoimply.ParsedTag{Raw: tag, BaseName: tag}, false
}

// ParseAll parses every tag, keeping plain base tags alongside costumes.
func (p *Parser) ParseAll(tags []autoimply.Tag) []autoimply.ParsedTag {
	parsed := make([]autoimply.ParsedTag, 0, len(tags))
	for _, tag := range tags {
		pt, _ := p.Parse(tag.Name)
		parsed = append(parsed, pt)
	}
	return parsed
}

// splitSeriesMarker moves a trailing "(series)" qualifier into
// SeriesQualifier so that candidate parents keep it.
func (p *Parser) splitSeriesMarker(pt *autoimply.ParsedTag) {
	if len(pt.Qualifiers) == 0 {
		return
	}
	last := pt.Qualifiers[len(pt.Qualifiers)-1]
	for _, marker := range p.markers {
		if last == "("+marker+")" {
			pt.SeriesQualifier = last
			pt.Qualifiers = pt.Qualifiers[:len(pt.Qualifiers)-1]
			return
		}
	}
}

// splitBareQualifiers extracts a configured bare version token (e.g.
// "kai_ni") from the end of the base name. Token matching is
// case-sensitive and underscore-delimited; at most one token is split.
func (p *Parser) splitBareQualifiers(pt *autoimply.ParsedTag) {
	for _, token := range p.extraQualifiers {
		base, found := strings.CutSuffix(pt.BaseName, "_"+token)
		if !found || base == "" {
			continue
		}
		pt.BaseName = base
		pt.Qualifiers = append([]string{token}, pt.Qualifiers...)
		if pt.ExtraQualifier == "" {
			pt.ExtraQualifier = token
		}
		return
	}
}
