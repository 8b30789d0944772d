package demands

import (
	"slices"
	"strings"

	"github.com/ariefcatur/go-agro-market/internal/accounts"
)

type FilterKind string

const (
	FilterAll        FilterKind = "all"
	FilterOpen       FilterKind = "open"
	FilterMine       FilterKind = "mine"
	FilterCanFulfill FilterKind = "canFulfill"
)

func (f FilterKind) Valid() bool {
	switch f {
	case FilterAll, FilterOpen, FilterMine, FilterCanFulfill:
		return true
	}
	return false
}

type Viewer struct {
	ID   string
	Role accounts.Role
}

// Filter returns the demands matching text and kind for viewer, newest first
// with ties broken by id. canFulfill narrows to open demands only for
// farmers; other viewers get every demand.
func Filter(ds []Demand, text string, kind FilterKind, viewer Viewer) []Demand {
	text = strings.ToLower(strings.TrimSpace(text))
	out := make([]Demand, 0, len(ds))
	for _, d := range ds {
		if text != "" && !matchesText(d, text) {
			continue
		}
		if !matchesKind(d, kind, viewer) {
			continue
		}
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b Demand) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func matchesText(d Demand, lowered string) bool {
	for _, field := range [...]string{d.Title, d.Description, d.Location} {
		if strings.Contains(strings.ToLower(field), lowered) {
			return true
		}
	}
	return false
}

func matchesKind(d Demand, kind FilterKind, viewer Viewer) bool {
	switch kind {
	case FilterOpen:
		return d.Status == StatusOpen
	case FilterMine:
		return d.RequesterID == viewer.ID
	case FilterCanFulfill:
		if viewer.Role != accounts.RoleFarmer {
			return true
		}
		return d.Status == StatusOpen
	default:
		return true
	}
}
