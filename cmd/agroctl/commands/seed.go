package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ariefcatur/go-agro-market/internal/accounts"
	"github.com/ariefcatur/go-agro-market/internal/app"
	"github.com/ariefcatur/go-agro-market/internal/catalog"
	"github.com/ariefcatur/go-agro-market/internal/demands"
	"github.com/ariefcatur/go-agro-market/internal/payment"
	"github.com/ariefcatur/go-agro-market/internal/subscriptions"
)

type seedFarmer struct {
	in       accounts.RegisterInput
	upgrade  subscriptions.Plan
	products []seedProduct
}

type seedProduct struct {
	name, desc string
	category   catalog.Category
	price      string
	unit       string
	organic    bool
	stock      int64
}

func ptr[T any](v T) *T { return &v }

var seedFarmers = []seedFarmer{
	{
		in: accounts.RegisterInput{
			Name: "Maria Popescu", Email: "maria@greenfarm.md", Phone: "+37369123456",
			Role: accounts.RoleFarmer, Location: "Orhei",
			Latitude: ptr(47.3833), Longitude: ptr(28.8167),
			FarmName: "Green Valley Farm",
		},
		// six listings do not fit the free plan
		upgrade: subscriptions.PlanBasic,
		products: []seedProduct{
			{"Organic Tomatoes", "Fresh, juicy organic tomatoes grown without pesticides.", catalog.CategoryVegetables, "25", "kg", true, 80},
			{"Fresh Cucumbers", "Crisp and refreshing cucumbers, perfect for summer salads.", catalog.CategoryVegetables, "18", "kg", false, 60},
			{"Sweet Apples", "Delicious red apples with crispy texture and sweet taste.", catalog.CategoryFruits, "20", "kg", false, 100},
			{"Fresh Cow Milk", "Fresh, pasteurized cow milk from grass-fed cows.", catalog.CategoryDairy, "12", "liter", false, 40},
			{"Wildflower Honey", "Pure wildflower honey with natural sweetness.", catalog.CategoryHoney, "120", "kg", true, 15},
			{"Organic Wheat", "High-quality organic wheat for baking and cooking.", catalog.CategoryGrains, "8", "kg", true, 100},
		},
	},
	{
		in: accounts.RegisterInput{
			Name: "Ion Cojocaru", Email: "ion@organicfresh.md", Phone: "+37369654321",
			Role: accounts.RoleFarmer, Location: "Căușeni",
			Latitude: ptr(46.6333), Longitude: ptr(29.4),
			FarmName: "Organic Fresh",
		},
		products: []seedProduct{
			{"Sweet Bell Peppers", "Colorful sweet bell peppers in red, yellow and green.", catalog.CategoryVegetables, "35", "kg", false, 50},
			{"Baby Carrots", "Sweet and tender baby carrots.", catalog.CategoryVegetables, "22", "kg", true, 70},
			{"Organic Grapes", "Sweet organic grapes for eating fresh or making juice.", catalog.CategoryFruits, "40", "kg", true, 45},
			{"Free-Range Eggs", "Fresh eggs from free-range chickens.", catalog.CategoryEggs, "25", "dozen", false, 30},
			{"Organic Parsley", "Fresh organic parsley, rich in vitamins.", catalog.CategoryHerbs, "40", "kg", true, 10},
		},
	},
	{
		in: accounts.RegisterInput{
			Name: "Elena Rusu", Email: "elena@sunnyacres.md", Phone: "+37369987654",
			Role: accounts.RoleFarmer, Location: "Ungheni",
			Latitude: ptr(47.2167), Longitude: ptr(27.8),
			FarmName: "Sunny Acres",
		},
		products: []seedProduct{
			{"Fresh Lettuce", "Crispy green lettuce leaves.", catalog.CategoryVegetables, "15", "pieces", false, 90},
			{"Fresh Strawberries", "Sweet and juicy strawberries, picked this morning.", catalog.CategoryFruits, "45", "kg", false, 25},
			{"Artisan Cheese", "Handmade cheese with traditional methods.", catalog.CategoryDairy, "80", "kg", false, 20},
			{"Fresh Basil", "Aromatic fresh basil leaves.", catalog.CategoryHerbs, "60", "kg", true, 12},
		},
	},
}

var seedRestaurant = accounts.RegisterInput{
	Name: "Villa Mia Restaurant", Email: "orders@villamia.md", Phone: "+37322123456",
	Role: accounts.RoleRestaurant, Location: "Chisinau",
	Latitude: ptr(47.0105), Longitude: ptr(28.8638),
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load sample farmers, listings and a demand request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, closeFn, err := services(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			// seeding never depends on PAYMENT_MODE
			svcs.Subscriptions.Payments = &payment.Simulated{Outcome: payment.Authorized}

			n, err := seed(cmd.Context(), svcs)
			if errors.Is(err, accounts.ErrEmailTaken) {
				fmt.Fprintln(cmd.OutOrStdout(), "sample data already present")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d farmers, %d listings, 1 demand\n", len(seedFarmers), n)
			return nil
		},
	}
}

func seed(ctx context.Context, svcs *app.Services) (int, error) {
	listings := 0
	for _, f := range seedFarmers {
		u, _, err := svcs.Accounts.Register(ctx, f.in)
		if err != nil {
			return listings, err
		}
		if f.upgrade != "" {
			in := subscriptions.ChangeInput{Plan: f.upgrade, PaymentMethod: "seed", AutoRenew: true}
			if _, err := svcs.Subscriptions.Change(ctx, u.ID, in); err != nil {
				return listings, fmt.Errorf("upgrade %s: %w", u.Email, err)
			}
		}
		for _, p := range f.products {
			in := catalog.ListingInput{
				Name:              p.name,
				Description:       p.desc,
				Category:          p.category,
				Price:             decimal.RequireFromString(p.price),
				Unit:              p.unit,
				MinimumOrder:      decimal.NewFromInt(1),
				AvailableQuantity: decimal.NewFromInt(p.stock),
				IsOrganic:         p.organic,
				DeliveryOptions:   []catalog.DeliveryOption{catalog.DeliveryPickup, catalog.DeliveryLocal},
			}
			if p.organic {
				in.FarmingMethod = catalog.MethodOrganic
			}
			if _, err := svcs.Catalog.CreateListing(ctx, u.ID, in); err != nil {
				return listings, fmt.Errorf("listing %q: %w", p.name, err)
			}
			listings++
		}
	}

	buyer, _, err := svcs.Accounts.Register(ctx, seedRestaurant)
	if err != nil {
		return listings, err
	}
	_, err = svcs.Demands.Post(ctx, buyer.ID, demands.PostInput{
		Title:               "Fresh Organic Tomatoes Needed",
		Description:         "Looking for high-quality organic tomatoes for our restaurant. Need consistent supply for the next month.",
		Category:            catalog.CategoryVegetables,
		Quantity:            decimal.NewFromInt(20),
		Unit:                "kg",
		MaxPrice:            decimal.NewFromInt(25),
		Location:            seedRestaurant.Location,
		Latitude:            seedRestaurant.Latitude,
		Longitude:           seedRestaurant.Longitude,
		RequiredBy:          time.Now().UTC().AddDate(0, 0, 7),
		IsOrganic:           true,
		QualityRequirements: []string{"Organic certified", "Fresh (harvested within 2 days)"},
		DeliveryPreference:  catalog.DeliveryLocal,
		Tags:                []string{"tomatoes", "organic", "restaurant"},
	})
	if err != nil {
		return listings, fmt.Errorf("post demand: %w", err)
	}
	return listings, nil
}
