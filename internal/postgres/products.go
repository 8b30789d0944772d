package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-agro-market/internal/catalog"
)

const productColumns = `id, name, description, category, price, unit, minimum_order, available_quantity,
	image_urls, farmer_id, farmer_name, is_organic, harvest_date, expiry_date, location, latitude,
	longitude, is_available, farming_method, delivery_options, created_at, updated_at, views, likes, tags`

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var (
		p    catalog.Product
		opts []string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Price, &p.Unit, &p.MinimumOrder,
		&p.AvailableQuantity, &p.ImageURLs, &p.FarmerID, &p.FarmerName, &p.IsOrganic, &p.HarvestDate,
		&p.ExpiryDate, &p.Location, &p.Latitude, &p.Longitude, &p.IsAvailable, &p.FarmingMethod, &opts,
		&p.CreatedAt, &p.UpdatedAt, &p.Views, &p.Likes, &p.Tags)
	if err != nil {
		return catalog.Product{}, err
	}
	p.DeliveryOptions = make([]catalog.DeliveryOption, 0, len(opts))
	for _, o := range opts {
		p.DeliveryOptions = append(p.DeliveryOptions, catalog.DeliveryOption(o))
	}
	return p, nil
}

// CreateProduct locks the farmer's user row while gating, so concurrent
// creates for one farmer see each other's inserts.
func (r *Repo) CreateProduct(ctx context.Context, p catalog.Product, gate catalog.ListingGate) error {
	opts := make([]string, 0, len(p.DeliveryOptions))
	for _, o := range p.DeliveryOptions {
		opts = append(opts, string(o))
	}
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if gate != nil {
			if err := gateListing(ctx, tx, p.FarmerID, gate); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `INSERT INTO products(`+productColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)`,
			p.ID, p.Name, p.Description, string(p.Category), p.Price, p.Unit, p.MinimumOrder, p.AvailableQuantity,
			texts(p.ImageURLs), p.FarmerID, p.FarmerName, p.IsOrganic, p.HarvestDate, p.ExpiryDate, p.Location,
			p.Latitude, p.Longitude, p.IsAvailable, string(p.FarmingMethod), opts, p.CreatedAt, p.UpdatedAt,
			p.Views, p.Likes, texts(p.Tags))
		return err
	})
}

func gateListing(ctx context.Context, tx pgx.Tx, farmerID string, gate catalog.ListingGate) error {
	var locked string
	if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id=$1 FOR UPDATE`, farmerID).Scan(&locked); err != nil {
		return notFound(err)
	}
	var n int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE farmer_id=$1 AND is_available`, farmerID).Scan(&n); err != nil {
		return err
	}
	return gate(n)
}

func (r *Repo) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	return p, notFound(err)
}

func (r *Repo) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []catalog.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) SetProductAvailability(ctx context.Context, id string, available bool, at time.Time, gate catalog.ListingGate) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var (
			farmerID string
			current  bool
		)
		if err := tx.QueryRow(ctx, `SELECT farmer_id, is_available FROM products WHERE id=$1 FOR UPDATE`, id).
			Scan(&farmerID, &current); err != nil {
			return notFound(err)
		}
		if gate != nil && available && !current {
			if err := gateListing(ctx, tx, farmerID, gate); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `UPDATE products SET is_available=$2, updated_at=$3 WHERE id=$1`, id, available, at)
		return err
	})
}

func (r *Repo) IncrementProductViews(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE products SET views = views + 1 WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return affectedOne(ct)
}

func (r *Repo) IncrementProductLikes(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE products SET likes = likes + 1 WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return affectedOne(ct)
}

// DecrementStock locks the row, floors the quantity at zero and delists the
// product once it runs out.
func (r *Repo) DecrementStock(ctx context.Context, id string, qty decimal.Decimal, at time.Time) (catalog.Product, error) {
	var out catalog.Product
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var stock decimal.Decimal
		if err := tx.QueryRow(ctx, `SELECT available_quantity FROM products WHERE id=$1 FOR UPDATE`, id).Scan(&stock); err != nil {
			return notFound(err)
		}
		left := stock.Sub(qty)
		available := true
		if !left.IsPositive() {
			left = decimal.Zero
			available = false
		}
		if _, err := tx.Exec(ctx, `
			UPDATE products SET available_quantity=$2, is_available = is_available AND $3, updated_at=$4
			WHERE id=$1`, id, left, available, at); err != nil {
			return err
		}
		p, err := scanProduct(tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
		out = p
		return err
	})
	return out, err
}
