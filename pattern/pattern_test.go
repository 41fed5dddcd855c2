package pattern

import (
	"reflect"
	"testing"

	"github.com/boorubot/autoimply/series"
)

func mustParser(t *testing.T, cfg series.Config) *Parser {
	t.Helper()
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestParse_DefaultPattern(t *testing.T) {
	p := mustParser(t, series.Config{Name: "blue_archive", TopicID: 1})

	pt, ok := p.Parse("kei_(swimsuit)_(blue_archive)")
	if !ok {
		t.Fatal("Parse() ok = false, want true")
	}
	if pt.BaseName != "kei" {
		t.Errorf("BaseName = %q, want %q", pt.BaseName, "kei")
	}
	if !reflect.DeepEqual(pt.Qualifiers, []string{"(swimsuit)"}) {
		t.Errorf("Qualifiers = %v, want [(swimsuit)]", pt.Qualifiers)
	}
	if pt.SeriesQualifier != "(blue_archive)" {
		t.Errorf("SeriesQualifier = %q, want %q", pt.SeriesQualifier, "(blue_archive)")
	}
	if pt.Rejoin() != pt.Raw {
		t.Errorf("Rejoin() = %q, want %q", pt.Rejoin(), pt.Raw)
	}
}

func TestParse_BaseTagWithSeriesMarkerOnly(t *testing.T) {
	p := mustParser(t, series.Config{Name: "blue_archive", TopicID: 1})

	pt, ok := p.Parse("hina_(blue_archive)")
	if !ok {
		t.Fatal("Parse() ok = false, want true")
	}
	// The series marker is not a costume qualifier.
	if pt.IsCostume() {
		t.Errorf("IsCostume() = true, want false for %q", pt.Raw)
	}
	if pt.BaseName != "hina" || pt.SeriesQualifier != "(blue_archive)" {
		t.Errorf("got base %q series %q", pt.BaseName, pt.SeriesQualifier)
	}
}

func TestParse_PlainTagDoesNotMatch(t *testing.T) {
	p := mustParser(t, series.Config{Name: "blue_archive", TopicID: 1})

	pt, ok := p.Parse("shiroko")
	if ok {
		t.Fatal("Parse() ok = true, want false")
	}
	if pt.BaseName != "shiroko" || pt.Raw != "shiroko" {
		t.Errorf("got %+v, want base tag passthrough", pt)
	}
}

func TestParse_BareExtraQualifier(t *testing.T) {
	p := mustParser(t, series.Config{
		Name:            "kantai_collection",
		TopicID:         1,
		Aliases:         []string{"kancolle"},
		ExtraQualifiers: []string{"kai", "kai_ni"},
	})

	pt, ok := p.Parse("akagi_kai_ni_(kancolle)")
	if !ok {
		t.Fatal("Parse() ok = false, want true")
	}
	if pt.BaseName != "akagi" {
		t.Errorf("BaseName = %q, want %q", pt.BaseName, "akagi")
	}
	if pt.ExtraQualifier != "kai_ni" {
		t.Errorf("ExtraQualifier = %q, want %q", pt.ExtraQualifier, "kai_ni")
	}
	if !reflect.DeepEqual(pt.Qualifiers, []string{"kai_ni"}) {
		t.Errorf("Qualifiers = %v, want [kai_ni]", pt.Qualifiers)
	}
	if pt.SeriesQualifier != "(kancolle)" {
		t.Errorf("SeriesQualifier = %q, want %q", pt.SeriesQualifier, "(kancolle)")
	}
	if pt.Rejoin() != "akagi_kai_ni_(kancolle)" {
		t.Errorf("Rejoin() = %q, not lossless", pt.Rejoin())
	}
}

func TestParse_CustomPatternWithExtraQualifierGroup(t *testing.T) {
	p := mustParser(t, series.Config{
		Name:    "kantai_collection",
		TopicID: 1,
		Aliases: []string{"kancolle"},
		ExtraCostumePatterns: []string{
			`(?P<base_name>[^(]+?)_(?P<extra_qualifier>kai(?:_ni)?)(?P<qualifiers>(?:_\(.*\))+)`,
		},
	})

	pt, ok := p.Parse("yamato_kai_(kancolle)")
	if !ok {
		t.Fatal("Parse() ok = false, want true")
	}
	if pt.BaseName != "yamato" || pt.ExtraQualifier != "kai" {
		t.Errorf("got base %q extra %q", pt.BaseName, pt.ExtraQualifier)
	}
	if pt.SeriesQualifier != "(kancolle)" {
		t.Errorf("SeriesQualifier = %q, want %q", pt.SeriesQualifier, "(kancolle)")
	}
}

func TestParse_LosslessFallthrough(t *testing.T) {
	// The custom pattern matches but drops the "x", so its parse cannot
	// round-trip; the default rule should win instead.
	p := mustParser(t, series.Config{
		Name:    "some_series",
		TopicID: 1,
		ExtraCostumePatterns: []string{
			`(?P<base_name>.+)x(?P<qualifiers>(?:_\(.*\))+)`,
		},
	})

	pt, ok := p.Parse("alexx_(dress)")
	if !ok {
		t.Fatal("Parse() ok = false, want true")
	}
	if pt.BaseName != "alexx" {
		t.Errorf("BaseName = %q, want %q (default rule)", pt.BaseName, "alexx")
	}
	if pt.Rejoin() != "alexx_(dress)" {
		t.Errorf("Rejoin() = %q, not lossless", pt.Rejoin())
	}
}

func TestParse_RuleOrderIsSignificant(t *testing.T) {
	// A custom rule that treats "(event)" as part of the base name must
	// win over the default rule.
	p := mustParser(t, series.Config{
		Name:    "some_series",
		TopicID: 1,
		ExtraCostumePatterns: []string{
			`(?P<base_name>[^(]+_\(event\))(?P<qualifiers>(?:_\(.*\))+)`,
		},
	})

	pt, ok := p.Parse("rin_(event)_(dress)")
	if !ok {
		t.Fatal("Parse() ok = false, want true")
	}
	if pt.BaseName != "rin_(event)" {
		t.Errorf("BaseName = %q, want %q", pt.BaseName, "rin_(event)")
	}
	if !reflect.DeepEqual(pt.Qualifiers, []string{"(dress)"}) {
		t.Errorf("Qualifiers = %v, want [(dress)]", pt.Qualifiers)
	}
}

func TestCompileRule_RequiresNamedGroups(t *testing.T) {
	if _, err := CompileRule(`(?P<base_name>.+)`); err == nil {
		t.Error("CompileRule() error = nil, want missing qualifiers group error")
	}
	if _, err := CompileRule(`(.+)(_\(.*\))`); err == nil {
		t.Error("CompileRule() error = nil, want missing named groups error")
	}
}

func TestParse_MultipleQualifiers(t *testing.T) {
	p := mustParser(t, series.Config{Name: "fate", TopicID: 1})

	pt, ok := p.Parse("saber_(armor)_(alternate)_(fate)")
	if !ok {
		t.Fatal("Parse() ok = false, want true")
	}
	if got := pt.Specificity(); got != 2 {
		t.Errorf("Specificity() = %d, want 2", got)
	}
	if !reflect.DeepEqual(pt.Qualifiers, []string{"(armor)", "(alternate)"}) {
		t.Errorf("Qualifiers = %v", pt.Qualifiers)
	}
}
