package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-agro-market/internal/cart"
)

const cartColumns = `id, user_id, product_id, product_name, farmer_id, unit_price, quantity, unit,
	delivery_option, created_at`

func scanCartItem(row pgx.Row) (cart.Item, error) {
	var it cart.Item
	err := row.Scan(&it.ID, &it.UserID, &it.ProductID, &it.ProductName, &it.FarmerID, &it.UnitPrice,
		&it.Quantity, &it.Unit, &it.DeliveryOption, &it.CreatedAt)
	return it, err
}

func (r *Repo) ListCart(ctx context.Context, userID string) ([]cart.Item, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+cartColumns+` FROM cart_items WHERE user_id=$1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []cart.Item{}
	for rows.Next() {
		it, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repo) GetCartItem(ctx context.Context, id string) (cart.Item, error) {
	it, err := scanCartItem(r.DB.QueryRow(ctx, `SELECT `+cartColumns+` FROM cart_items WHERE id=$1`, id))
	return it, notFound(err)
}

func (r *Repo) SaveCartItem(ctx context.Context, it cart.Item) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO cart_items(`+cartColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		it.ID, it.UserID, it.ProductID, it.ProductName, it.FarmerID, it.UnitPrice, it.Quantity, it.Unit,
		string(it.DeliveryOption), it.CreatedAt)
	return err
}

func (r *Repo) DeleteCartItem(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return affectedOne(ct)
}

func (r *Repo) ClearCart(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID)
	return err
}
