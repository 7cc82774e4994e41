// Package selection owns the filter criteria and the selected point shared by
// the map view and the list view of a session.
package selection

import (
	"slices"
	"sort"
	"strings"

	"github.com/samirrijal/prelevements/internal/core/domain"
	"github.com/samirrijal/prelevements/internal/pkg/normalize"
)

// Filters are the criteria applied to the point collection. An empty field
// matches every point.
type Filters struct {
	Name       string   `json:"name"`
	TypeMilieu string   `json:"typeMilieu"`
	Usages     []string `json:"usages"`
}

// IsEmpty reports whether f matches everything.
func (f Filters) IsEmpty() bool {
	return strings.TrimSpace(f.Name) == "" && f.TypeMilieu == "" && len(f.Usages) == 0
}

// Clone returns a copy of f whose Usages slice is never nil.
func (f Filters) Clone() Filters {
	out := f
	out.Usages = make([]string, 0, len(f.Usages))
	for _, u := range f.Usages {
		if u != "" {
			out.Usages = append(out.Usages, u)
		}
	}
	return out
}

// Match reports whether p satisfies every criterion of f.
func (f Filters) Match(p *domain.PointPrelevement) bool {
	return f.matchName(normalize.String(f.Name), p) && f.matchMilieu(p) && f.matchUsages(p)
}

func (f Filters) matchName(needle string, p *domain.PointPrelevement) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(normalize.String(p.DisplayName()), needle)
}

func (f Filters) matchMilieu(p *domain.PointPrelevement) bool {
	return f.TypeMilieu == "" || p.TypeMilieu == f.TypeMilieu
}

func (f Filters) matchUsages(p *domain.PointPrelevement) bool {
	if len(f.Usages) == 0 {
		return true
	}
	for _, u := range p.Usages {
		if slices.Contains(f.Usages, u) {
			return true
		}
	}
	return false
}

// ApplyFilters returns the points matching f, in input order. The input is
// not modified.
func ApplyFilters(points []domain.PointPrelevement, f Filters) []domain.PointPrelevement {
	out := make([]domain.PointPrelevement, 0, len(points))
	needle := normalize.String(f.Name)
	for i := range points {
		p := &points[i]
		if f.matchName(needle, p) && f.matchMilieu(p) && f.matchUsages(p) {
			out = append(out, *p)
		}
	}
	return out
}

// SortByDisplayName returns a copy of points ordered by display name
// (plain byte order, stable for equal names).
func SortByDisplayName(points []domain.PointPrelevement) []domain.PointPrelevement {
	out := slices.Clone(points)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DisplayName() < out[j].DisplayName()
	})
	return out
}

// ListView is what the side list renders.
type ListView struct {
	// Loading is true until the source collection is available. It is
	// distinct from an empty result after filtering.
	Loading bool                  `json:"loading"`
	Points  []domain.PointSummary `json:"points"`
	Matched int                   `json:"matched"`
	Total   int                   `json:"total"`
}

// BuildListView filters, sorts and projects points. A nil source means the
// collection has not been fetched yet.
func BuildListView(points []domain.PointPrelevement, f Filters) ListView {
	if points == nil {
		return ListView{Loading: true}
	}
	sorted := SortByDisplayName(ApplyFilters(points, f))
	view := ListView{
		Points:  make([]domain.PointSummary, len(sorted)),
		Matched: len(sorted),
		Total:   len(points),
	}
	for i, p := range sorted {
		view.Points[i] = domain.Summarize(p)
	}
	return view
}
