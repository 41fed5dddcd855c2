package engine

import (
	"testing"

	autoimply "github.com/boorubot/autoimply"
	"github.com/boorubot/autoimply/series"
)

func pt(raw, base, seriesQual string, quals ...string) autoimply.ParsedTag {
	return autoimply.ParsedTag{
		Raw:             raw,
		BaseName:        base,
		Qualifiers:      quals,
		SeriesQualifier: seriesQual,
	}
}

func TestDerive_CostumeImpliesBase(t *testing.T) {
	d := NewDeriver(series.Config{Name: "blue_archive", AllowSubImplications: true}, nil)

	imps := d.Derive([]autoimply.ParsedTag{
		pt("kei_(blue_archive)", "kei", "(blue_archive)"),
		pt("kei_(swimsuit)_(blue_archive)", "kei", "(blue_archive)", "(swimsuit)"),
		pt("kei", "kei", ""), // no series marker, not a valid parent here
	})

	if len(imps) != 1 {
		t.Fatalf("Derive() = %d implications, want 1", len(imps))
	}
	if got := imps[0].Line(); got != "kei_(swimsuit)_(blue_archive) -> kei_(blue_archive)" {
		t.Errorf("Line() = %q", got)
	}
	if len(imps[0].AmbiguousWith) != 0 {
		t.Errorf("AmbiguousWith = %v, want empty", imps[0].AmbiguousWith)
	}
}

func TestDerive_MostSpecificParentWins(t *testing.T) {
	d := NewDeriver(series.Config{Name: "s", AllowSubImplications: true}, nil)

	imps := d.Derive([]autoimply.ParsedTag{
		pt("a_(s)", "a", "(s)"),
		pt("a_(x)_(s)", "a", "(s)", "(x)"),
		pt("a_(x)_(y)_(s)", "a", "(s)", "(x)", "(y)"),
	})

	want := map[string]string{
		"a_(x)_(s)":     "a_(s)",
		"a_(x)_(y)_(s)": "a_(x)_(s)",
	}
	if len(imps) != len(want) {
		t.Fatalf("Derive() = %d implications, want %d", len(imps), len(want))
	}
	for _, im := range imps {
		if want[im.Child.Raw] != im.Parent.Raw {
			t.Errorf("parent of %s = %s, want %s", im.Child.Raw, im.Parent.Raw, want[im.Child.Raw])
		}
	}
}

func TestDerive_SubImplicationsDisabled(t *testing.T) {
	d := NewDeriver(series.Config{Name: "s", AllowSubImplications: false}, nil)

	imps := d.Derive([]autoimply.ParsedTag{
		pt("a_(s)", "a", "(s)"),
		pt("a_(x)_(s)", "a", "(s)", "(x)"),
		pt("a_(x)_(y)_(s)", "a", "(s)", "(x)", "(y)"),
	})

	// Every costume must point directly at the bare base tag.
	if len(imps) != 2 {
		t.Fatalf("Derive() = %d implications, want 2", len(imps))
	}
	for _, im := range imps {
		if im.Parent.Raw != "a_(s)" {
			t.Errorf("parent of %s = %s, want a_(s)", im.Child.Raw, im.Parent.Raw)
		}
	}
}

func TestDerive_SubImplicationsDisabledNoBase(t *testing.T) {
	d := NewDeriver(series.Config{Name: "s", AllowSubImplications: false}, nil)

	imps := d.Derive([]autoimply.ParsedTag{
		pt("a_(x)_(s)", "a", "(s)", "(x)"),
		pt("a_(x)_(y)_(s)", "a", "(s)", "(x)", "(y)"),
	})
	if len(imps) != 0 {
		t.Errorf("Derive() = %d implications, want 0 without a base tag", len(imps))
	}
}

func TestDerive_AmbiguousParentsRecorded(t *testing.T) {
	d := NewDeriver(series.Config{Name: "s", AllowSubImplications: true}, nil)

	imps := d.Derive([]autoimply.ParsedTag{
		pt("a_(x)_(s)", "a", "(s)", "(x)"),
		pt("a_(y)_(s)", "a", "(s)", "(y)"),
		pt("a_(x)_(y)_(s)", "a", "(s)", "(x)", "(y)"),
	})

	if len(imps) != 1 {
		t.Fatalf("Derive() = %d implications, want 1", len(imps))
	}
	im := imps[0]
	if im.Parent.Raw != "a_(x)_(s)" {
		t.Errorf("Parent = %s, want a_(x)_(s) (name tiebreak)", im.Parent.Raw)
	}
	if len(im.AmbiguousWith) != 1 || im.AmbiguousWith[0] != "a_(y)_(s)" {
		t.Errorf("AmbiguousWith = %v, want [a_(y)_(s)]", im.AmbiguousWith)
	}
}

func TestDerive_LineBlacklist(t *testing.T) {
	d := NewDeriver(series.Config{
		Name:                 "kancolle",
		AllowSubImplications: true,
		LineBlacklist:        []string{"amagi_(battlespirits)_(kancolle) -> amagi_(kancolle)"},
	}, nil)

	imps := d.Derive([]autoimply.ParsedTag{
		pt("amagi_(kancolle)", "amagi", "(kancolle)"),
		pt("amagi_(battlespirits)_(kancolle)", "amagi", "(kancolle)", "(battlespirits)"),
	})
	if len(imps) != 0 {
		t.Errorf("Derive() = %v, want blacklisted line dropped", imps)
	}
}

func TestDerive_QualifierBlacklist(t *testing.T) {
	d := NewDeriver(series.Config{
		Name:                 "s",
		AllowSubImplications: true,
		QualifierBlacklist:   []string{"cosplay"},
	}, nil)

	imps := d.Derive([]autoimply.ParsedTag{
		pt("a_(s)", "a", "(s)"),
		pt("a_(cosplay)_(s)", "a", "(s)", "(cosplay)"),
		pt("a_(dress)_(s)", "a", "(s)", "(dress)"),
	})
	if len(imps) != 1 || imps[0].Child.Raw != "a_(dress)_(s)" {
		t.Errorf("Derive() = %v, want only the non-blacklisted child", imps)
	}
}

func TestDerive_SkipsChildrenWithAntecedents(t *testing.T) {
	d := NewDeriver(series.Config{Name: "s", AllowSubImplications: true}, nil)
	d.Meta = map[string]autoimply.Tag{
		"a_(x)_(s)": {Name: "a_(x)_(s)", HasAntecedents: true},
	}

	imps := d.Derive([]autoimply.ParsedTag{
		pt("a_(s)", "a", "(s)"),
		pt("a_(x)_(s)", "a", "(s)", "(x)"),
	})
	if len(imps) != 0 {
		t.Errorf("Derive() = %v, want children with antecedents skipped", imps)
	}
}

func TestDerive_SkipsDeprecatedParents(t *testing.T) {
	d := NewDeriver(series.Config{Name: "s", AllowSubImplications: true}, nil)
	d.Meta = map[string]autoimply.Tag{
		"a_(x)_(s)": {Name: "a_(x)_(s)", IsDeprecated: true},
	}

	imps := d.Derive([]autoimply.ParsedTag{
		pt("a_(s)", "a", "(s)"),
		pt("a_(x)_(s)", "a", "(s)", "(x)"),
		pt("a_(x)_(y)_(s)", "a", "(s)", "(x)", "(y)"),
	})

	// a_(x)_(y)_(s) falls back to the base tag; a_(x)_(s) itself still
	// gets an implication since deprecation only disqualifies parents.
	parents := make(map[string]string)
	for _, im := range imps {
		parents[im.Child.Raw] = im.Parent.Raw
	}
	if parents["a_(x)_(y)_(s)"] != "a_(s)" {
		t.Errorf("parent of a_(x)_(y)_(s) = %s, want a_(s)", parents["a_(x)_(y)_(s)"])
	}
}

func TestDerive_DifferentSeriesMarkersDoNotMix(t *testing.T) {
	d := NewDeriver(series.Config{Name: "s", AllowSubImplications: true}, nil)

	imps := d.Derive([]autoimply.ParsedTag{
		pt("a", "a", ""),
		pt("a_(x)_(s)", "a", "(s)", "(x)"),
	})
	if len(imps) != 0 {
		t.Errorf("Derive() = %v, want none across series markers", imps)
	}
}

func TestQualifierSubset_Multiset(t *testing.T) {
	a := pt("a_(x)_(x)_(s)", "a", "(s)", "(x)", "(x)")
	b := pt("a_(x)_(s)", "a", "(s)", "(x)")

	if !qualifierSubset(b, a) {
		t.Error("qualifierSubset(b, a) = false, want true")
	}
	if qualifierSubset(a, b) {
		t.Error("qualifierSubset(a, b) = true, want false; duplicate counts matter")
	}
}

func TestHasCycle(t *testing.T) {
	mk := func(child, parent string) autoimply.Implication {
		return autoimply.Implication{
			Child:  autoimply.ParsedTag{Raw: child},
			Parent: autoimply.ParsedTag{Raw: parent},
		}
	}

	if hasCycle([]autoimply.Implication{mk("a", "b"), mk("b", "c")}) {
		t.Error("hasCycle() = true for a chain, want false")
	}
	if !hasCycle([]autoimply.Implication{mk("a", "b"), mk("b", "a")}) {
		t.Error("hasCycle() = false for a 2-cycle, want true")
	}
	if !hasCycle([]autoimply.Implication{mk("a", "a")}) {
		t.Error("hasCycle() = false for a self-loop, want true")
	}
}
