package engine

import (
	"sort"

	autoimply "github.com/boorubot/autoimply"
	"github.com/boorubot/autoimply/series"
)

// Assembler turns a derived implication set into submission-ready request
// groups, filtering out implications that already exist on the site or
// have already been requested.
type Assembler struct {
	cfg series.Config
}

// NewAssembler creates an assembler for the given series config.
func NewAssembler(cfg series.Config) *Assembler {
	return &Assembler{cfg: cfg}
}

// Assemble filters and groups the implications. With group_by_qualifier
// on, implications are bucketed by the child's extra-qualifier value;
// children without one form singleton groups keyed by their own raw name.
// Groups and their members are ordered by child name so that output is
// reproducible.
func (a *Assembler) Assemble(imps []autoimply.Implication, existing map[autoimply.ImplicationKey]bool) []autoimply.RequestGroup {
	fresh := make([]autoimply.Implication, 0, len(imps))
	for _, im := range imps {
		if existing[im.Key()] {
			continue
		}
		fresh = append(fresh, im)
	}
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].Child.Raw < fresh[j].Child.Raw })

	var groups []autoimply.RequestGroup
	if a.cfg.GroupByQualifier {
		buckets := make(map[string]*autoimply.RequestGroup)
		var order []string
		for _, im := range fresh {
			key := im.Child.ExtraQualifier
			if key == "" {
				key = im.Child.Raw
			}
			g, ok := buckets[key]
			if !ok {
				g = &autoimply.RequestGroup{Key: key}
				buckets[key] = g
				order = append(order, key)
			}
			g.Implications = append(g.Implications, im)
		}
		for _, key := range order {
			groups = append(groups, *buckets[key])
		}
	} else {
		for _, im := range fresh {
			groups = append(groups, autoimply.RequestGroup{
				Key:          im.Child.Raw,
				Implications: []autoimply.Implication{im},
			})
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Implications[0].Child.Raw < groups[j].Implications[0].Child.Raw
	})
	return groups
}
