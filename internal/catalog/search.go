package catalog

import (
	"math"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

type SortOption string

const (
	SortNewest    SortOption = "newest"
	SortOldest    SortOption = "oldest"
	SortPriceHigh SortOption = "priceHigh"
	SortPriceLow  SortOption = "priceLow"
	SortPopular   SortOption = "popular"
)

func (o SortOption) Valid() bool {
	switch o {
	case SortNewest, SortOldest, SortPriceHigh, SortPriceLow, SortPopular:
		return true
	}
	return false
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Query struct {
	Text        string
	Category    Category // empty = any
	Sort        SortOption
	OrganicOnly bool
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	// Near and RadiusKm restrict to listings with coordinates inside the radius.
	Near     *GeoPoint
	RadiusKm float64
}

// Search filters available products by q and sorts them. The sort is stable,
// so products with equal keys keep their input order.
func Search(products []Product, q Query) []Product {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if !p.IsAvailable {
			continue
		}
		if text != "" && !matchesText(p, text) {
			continue
		}
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		if q.OrganicOnly && !p.IsOrganic {
			continue
		}
		if q.MinPrice != nil && p.Price.LessThan(*q.MinPrice) {
			continue
		}
		if q.MaxPrice != nil && p.Price.GreaterThan(*q.MaxPrice) {
			continue
		}
		if q.Near != nil && q.RadiusKm > 0 {
			if p.Latitude == nil || p.Longitude == nil {
				continue
			}
			if DistanceKm(*q.Near, GeoPoint{Lat: *p.Latitude, Lng: *p.Longitude}) > q.RadiusKm {
				continue
			}
		}
		out = append(out, p)
	}
	SortProducts(out, q.Sort)
	return out
}

func matchesText(p Product, lowered string) bool {
	for _, field := range [...]string{p.Name, p.Description, p.Location, p.FarmerName} {
		if strings.Contains(strings.ToLower(field), lowered) {
			return true
		}
	}
	return false
}

// SortProducts orders ps in place; an unknown option sorts newest first.
func SortProducts(ps []Product, by SortOption) {
	var cmp func(a, b Product) int
	switch by {
	case SortOldest:
		cmp = func(a, b Product) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case SortPriceHigh:
		cmp = func(a, b Product) int { return b.Price.Cmp(a.Price) }
	case SortPriceLow:
		cmp = func(a, b Product) int { return a.Price.Cmp(b.Price) }
	case SortPopular:
		cmp = func(a, b Product) int { return b.Views - a.Views }
	default:
		cmp = func(a, b Product) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}
	slices.SortStableFunc(ps, cmp)
}

const earthRadiusKm = 6371.0

// DistanceKm is the great-circle distance between a and b.
func DistanceKm(a, b GeoPoint) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(b.Lat - a.Lat)
	dLng := rad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(a.Lat))*math.Cos(rad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
