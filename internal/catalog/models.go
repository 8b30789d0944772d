package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryVegetables Category = "vegetables"
	CategoryFruits     Category = "fruits"
	CategoryGrains     Category = "grains"
	CategoryDairy      Category = "dairy"
	CategoryMeat       Category = "meat"
	CategoryHerbs      Category = "herbs"
	CategoryWine       Category = "wine"
	CategoryHoney      Category = "honey"
	CategoryEggs       Category = "eggs"
	CategoryNuts       Category = "nuts"
	CategoryOther      Category = "other"
)

var Categories = []Category{
	CategoryVegetables, CategoryFruits, CategoryGrains, CategoryDairy, CategoryMeat,
	CategoryHerbs, CategoryWine, CategoryHoney, CategoryEggs, CategoryNuts, CategoryOther,
}

func (c Category) Valid() bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

type DeliveryOption string

const (
	DeliveryPickup   DeliveryOption = "pickup"
	DeliveryLocal    DeliveryOption = "delivery"
	DeliveryShipping DeliveryOption = "shipping"
)

func (d DeliveryOption) Valid() bool {
	switch d {
	case DeliveryPickup, DeliveryLocal, DeliveryShipping:
		return true
	}
	return false
}

type FarmingMethod string

const (
	MethodOrganic      FarmingMethod = "organic"
	MethodConventional FarmingMethod = "conventional"
	MethodBiodynamic   FarmingMethod = "biodynamic"
	MethodPermaculture FarmingMethod = "permaculture"
	MethodHydroponic   FarmingMethod = "hydroponic"
	MethodGreenhouse   FarmingMethod = "greenhouse"
)

type Product struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Description       string           `json:"description"`
	Category          Category         `json:"category"`
	Price             decimal.Decimal  `json:"price"`
	Unit              string           `json:"unit"`
	MinimumOrder      decimal.Decimal  `json:"minimum_order"`
	AvailableQuantity decimal.Decimal  `json:"available_quantity"`
	ImageURLs         []string         `json:"image_urls"`
	FarmerID          string           `json:"farmer_id"`
	FarmerName        string           `json:"farmer_name"`
	IsOrganic         bool             `json:"is_organic"`
	HarvestDate       *time.Time       `json:"harvest_date,omitempty"`
	ExpiryDate        *time.Time       `json:"expiry_date,omitempty"`
	Location          string           `json:"location"`
	Latitude          *float64         `json:"latitude,omitempty"`
	Longitude         *float64         `json:"longitude,omitempty"`
	IsAvailable       bool             `json:"is_available"`
	FarmingMethod     FarmingMethod    `json:"farming_method,omitempty"`
	DeliveryOptions   []DeliveryOption `json:"delivery_options"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	Views             int              `json:"views"`
	Likes             int              `json:"likes"`
	Tags              []string         `json:"tags"`
}

// Offers reports whether the product can be fulfilled with option d. A product
// listing no options accepts any.
func (p Product) Offers(d DeliveryOption) bool {
	if len(p.DeliveryOptions) == 0 {
		return true
	}
	for _, o := range p.DeliveryOptions {
		if o == d {
			return true
		}
	}
	return false
}
