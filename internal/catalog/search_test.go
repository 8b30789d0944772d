package catalog

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func names(ps []Product) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name)
	}
	return out
}

func sampleProducts() []Product {
	base := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	return []Product{
		{ID: "p1", Name: "Organic Tomatoes", Description: "Grown without pesticides", Category: CategoryVegetables,
			Price: decimal.NewFromInt(25), IsOrganic: true, IsAvailable: true, Location: "Orhei", FarmerName: "Green Valley Farm",
			Latitude: ptr(47.3833), Longitude: ptr(28.8167), CreatedAt: base, Views: 10},
		{ID: "p2", Name: "Fresh Cucumbers", Description: "Crisp", Category: CategoryVegetables,
			Price: decimal.NewFromInt(18), IsAvailable: true, Location: "Orhei", FarmerName: "Green Valley Farm",
			Latitude: ptr(47.3833), Longitude: ptr(28.8167), CreatedAt: base.Add(time.Hour), Views: 30},
		{ID: "p3", Name: "Sweet Bell Peppers", Description: "Red and yellow", Category: CategoryVegetables,
			Price: decimal.NewFromInt(35), IsAvailable: true, Location: "Causeni", FarmerName: "Organic Fresh",
			Latitude: ptr(46.6333), Longitude: ptr(29.4), CreatedAt: base.Add(2 * time.Hour), Views: 20},
		{ID: "p4", Name: "Cherry Tomato Mix", Description: "Sold out", Category: CategoryVegetables,
			Price: decimal.NewFromInt(30), IsAvailable: false, CreatedAt: base.Add(3 * time.Hour)},
		{ID: "p5", Name: "Wildflower Honey", Description: "Raw", Category: CategoryHoney,
			Price: decimal.NewFromInt(120), IsOrganic: true, IsAvailable: true, Location: "Ungheni", CreatedAt: base.Add(4 * time.Hour)},
	}
}

func TestSearch_TextIsCaseInsensitive(t *testing.T) {
	got := Search(sampleProducts(), Query{Text: "TOMATO"})
	assert.Equal(t, []string{"Organic Tomatoes"}, names(got), "unavailable listings are hidden")

	got = Search(sampleProducts(), Query{Text: "organic fresh"})
	assert.Equal(t, []string{"Sweet Bell Peppers"}, names(got), "farmer name is searched")
}

func TestSearch_PriceLow(t *testing.T) {
	got := Search(sampleProducts()[:3], Query{Sort: SortPriceLow})
	prices := make([]string, 0, len(got))
	for _, p := range got {
		prices = append(prices, p.Price.String())
	}
	assert.Equal(t, []string{"18", "25", "35"}, prices)
}

func TestSearch_Sorts(t *testing.T) {
	ps := sampleProducts()
	assert.Equal(t, []string{"Wildflower Honey", "Sweet Bell Peppers", "Fresh Cucumbers", "Organic Tomatoes"},
		names(Search(ps, Query{})), "default is newest first")
	assert.Equal(t, []string{"Organic Tomatoes", "Fresh Cucumbers", "Sweet Bell Peppers", "Wildflower Honey"},
		names(Search(ps, Query{Sort: SortOldest})))
	assert.Equal(t, "Wildflower Honey", names(Search(ps, Query{Sort: SortPriceHigh}))[0])
	assert.Equal(t, "Fresh Cucumbers", names(Search(ps, Query{Sort: SortPopular}))[0])
}

func TestSearch_Filters(t *testing.T) {
	ps := sampleProducts()
	assert.Equal(t, []string{"Wildflower Honey", "Organic Tomatoes"}, names(Search(ps, Query{OrganicOnly: true})))
	assert.Equal(t, []string{"Wildflower Honey"}, names(Search(ps, Query{Category: CategoryHoney})))

	lo, hi := decimal.NewFromInt(20), decimal.NewFromInt(40)
	assert.Equal(t, []string{"Sweet Bell Peppers", "Organic Tomatoes"}, names(Search(ps, Query{MinPrice: &lo, MaxPrice: &hi})))
}

func TestSearch_Radius(t *testing.T) {
	chisinau := &GeoPoint{Lat: 47.0105, Lng: 28.8638}
	got := Search(sampleProducts(), Query{Near: chisinau, RadiusKm: 50, Sort: SortOldest})
	assert.Equal(t, []string{"Organic Tomatoes", "Fresh Cucumbers"}, names(got), "listings without coordinates are excluded")

	got = Search(sampleProducts(), Query{Near: chisinau, RadiusKm: 100, Sort: SortOldest})
	assert.Equal(t, []string{"Organic Tomatoes", "Fresh Cucumbers", "Sweet Bell Peppers"}, names(got))
}

func TestDistanceKm(t *testing.T) {
	orhei := GeoPoint{Lat: 47.3833, Lng: 28.8167}
	chisinau := GeoPoint{Lat: 47.0105, Lng: 28.8638}
	assert.InDelta(t, 41.6, DistanceKm(orhei, chisinau), 1.0)
	assert.Zero(t, DistanceKm(orhei, orhei))
}

func TestCheckPurchase(t *testing.T) {
	p := Product{
		ID: "p1", FarmerID: "f1", IsAvailable: true, Unit: "kg",
		MinimumOrder: decimal.NewFromInt(2), AvailableQuantity: decimal.NewFromInt(10),
		DeliveryOptions: []DeliveryOption{DeliveryPickup},
	}
	tests := []struct {
		name  string
		buyer string
		qty   int64
		opt   DeliveryOption
		want  error
	}{
		{"ok", "c1", 2, DeliveryPickup, nil},
		{"own product", "f1", 2, DeliveryPickup, ErrOwnProduct},
		{"below minimum", "c1", 1, DeliveryPickup, ErrBelowMinimum},
		{"above stock", "c1", 11, DeliveryPickup, ErrExceedsAvailable},
		{"option not offered", "c1", 3, DeliveryShipping, ErrDeliveryOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPurchase(p, tt.buyer, decimal.NewFromInt(tt.qty), tt.opt)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}

	p.IsAvailable = false
	assert.ErrorIs(t, CheckPurchase(p, "c1", decimal.NewFromInt(2), DeliveryPickup), ErrUnavailable)
}
