package autoimply

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Tag is a raw character tag record as returned by a tag source.
type Tag struct {
	ID             int       `json:"id"`
	Name           string    `json:"name"`            // normalized: lowercase, underscored
	PostCount      int       `json:"post_count"`      // number of posts carrying the tag
	IsDeprecated   bool      `json:"is_deprecated"`   // deprecated tags are never implication targets
	HasWiki        bool      `json:"has_wiki"`        // tags without a wiki page cannot be submitted
	HasAntecedents bool      `json:"has_antecedents"` // tag already implies something on the site
	UpdatedAt      time.Time `json:"updated_at"`
}

// ParsedTag is the decomposition of a costume tag into its base character
// identity and qualifier tokens.
//
// Qualifiers keep their surface form: parenthesized tokens keep their
// parentheses (e.g. "(swimsuit)"), bare version tokens do not (e.g.
// "kai_ni"). The trailing series marker, when present, is split off into
// SeriesQualifier so that candidate parents keep it.
type ParsedTag struct {
	Raw             string   `json:"raw"`
	BaseName        string   `json:"base_name"`
	Qualifiers      []string `json:"qualifiers,omitempty"`
	ExtraQualifier  string   `json:"extra_qualifier,omitempty"`  // at most one bare version token
	SeriesQualifier string   `json:"series_qualifier,omitempty"` // e.g. "(kancolle)", empty if none
}

// IsCostume reports whether the tag carries any qualifier at all.
func (p ParsedTag) IsCostume() bool {
	return len(p.Qualifiers) > 0
}

// Specificity is the number of qualifier tokens, used for subset ordering.
func (p ParsedTag) Specificity() int {
	return len(p.Qualifiers)
}

// Rejoin reassembles the tag from its parts. For a lossless parse the
// result equals Raw.
func (p ParsedTag) Rejoin() string {
	parts := make([]string, 0, len(p.Qualifiers)+2)
	parts = append(parts, p.BaseName)
	parts = append(parts, p.Qualifiers...)
	if p.SeriesQualifier != "" {
		parts = append(parts, p.SeriesQualifier)
	}
	return strings.Join(parts, "_")
}

// ImplicationKey identifies an implication by its raw child and parent names.
type ImplicationKey struct {
	Child  string
	Parent string
}

// Implication is a directional pair stating that applying Child should also
// apply Parent. Child is always strictly more specific than Parent.
type Implication struct {
	Child  ParsedTag
	Parent ParsedTag

	// AmbiguousWith lists surviving candidate parents of equal specificity
	// that were not chosen. Non-empty values are flagged for manual review.
	AmbiguousWith []string
}

// Key returns the (child, parent) identity of the implication.
func (im Implication) Key() ImplicationKey {
	return ImplicationKey{Child: im.Child.Raw, Parent: im.Parent.Raw}
}

// Line renders the implication in the literal blacklist/script form.
func (im Implication) Line() string {
	return im.Child.Raw + " -> " + im.Parent.Raw
}

// RequestGroup bundles implications that are submitted as one unit.
type RequestGroup struct {
	// Key is the shared extra-qualifier value, or the child's raw name for
	// singleton groups.
	Key          string
	Implications []Implication
}

// Lines returns the imply script lines for the group, sorted.
func (g RequestGroup) Lines() []string {
	lines := make([]string, 0, len(g.Implications))
	for _, im := range g.Implications {
		lines = append(lines, "imply "+im.Line())
	}
	sort.Strings(lines)
	return lines
}

// Script renders the group as a BUR script.
func (g RequestGroup) Script() string {
	return strings.Join(g.Lines(), "\n")
}

// SubmissionResult describes the outcome of submitting one BUR script.
type SubmissionResult struct {
	BURID   int    // site-assigned id, zero for dry runs
	TopicID int
	Script  string
	DryRun  bool
}

// BURRecord is a bulk update request fetched from the site, mirrored
// locally so that already-requested implications are never proposed again.
type BURRecord struct {
	ID        int       `json:"id" db:"id"`
	Script    string    `json:"script" db:"script"`
	Status    BURStatus `json:"status" db:"status"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// ImplyLines extracts the normalized implication lines from the BUR script.
// Lines that do not create implications (aliases, category changes) are
// ignored.
func (b BURRecord) ImplyLines() []string {
	var out []string
	for _, line := range strings.Split(b.Script, "\n") {
		line = strings.ToLower(whitespaceRun.ReplaceAllString(strings.TrimSpace(line), " "))
		if strings.HasPrefix(line, "imply ") || strings.HasPrefix(line, "create implication ") {
			out = append(out, line)
		}
	}
	return out
}

// Implications parses the script into (child, parent) keys. Malformed lines
// are skipped rather than failing the whole record; site scripts are
// human-edited and occasionally broken.
func (b BURRecord) Implications() []ImplicationKey {
	var keys []ImplicationKey
	for _, line := range b.ImplyLines() {
		line = strings.TrimPrefix(line, "create implication ")
		line = strings.TrimPrefix(line, "imply ")
		child, parent, ok := strings.Cut(line, " -> ")
		if !ok {
			continue
		}
		child, parent = strings.TrimSpace(child), strings.TrimSpace(parent)
		if child == "" || parent == "" || strings.Contains(child, " ") || strings.Contains(parent, " ") {
			continue
		}
		keys = append(keys, ImplicationKey{Child: child, Parent: parent})
	}
	return keys
}
