package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-agro-market/internal/accounts"
	"github.com/ariefcatur/go-agro-market/internal/apperr"
	"github.com/ariefcatur/go-agro-market/internal/orders"
)

const orderColumns = `id, customer_id, farmer_id, total_amount, status, payment_status, delivery_option,
	delivery_address, delivery_date, notes, created_at, updated_at, customer_rating, customer_review`

func scanOrder(row pgx.Row) (orders.Order, error) {
	var o orders.Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.FarmerID, &o.TotalAmount, &o.Status, &o.PaymentStatus,
		&o.DeliveryOption, &o.DeliveryAddress, &o.DeliveryDate, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
		&o.CustomerRating, &o.CustomerReview)
	return o, err
}

// PlaceOrders writes orders, their items and clears the buyer's cart in one
// transaction.
func (r *Repo) PlaceOrders(ctx context.Context, placed []orders.Order, clearCartOf string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		for _, o := range placed {
			if _, err := tx.Exec(ctx, `INSERT INTO orders(`+orderColumns+`)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
				o.ID, o.CustomerID, o.FarmerID, o.TotalAmount, string(o.Status), string(o.PaymentStatus),
				string(o.DeliveryOption), o.DeliveryAddress, o.DeliveryDate, o.Notes, o.CreatedAt, o.UpdatedAt,
				o.CustomerRating, o.CustomerReview); err != nil {
				return err
			}
			for _, it := range o.Items {
				if _, err := tx.Exec(ctx, `
					INSERT INTO order_items(id, order_id, product_id, product_name, quantity, unit_price, total_price)
					VALUES ($1,$2,$3,$4,$5,$6,$7)`,
					it.ID, o.ID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice, it.TotalPrice); err != nil {
					return err
				}
			}
		}
		if clearCartOf == "" {
			return nil
		}
		_, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, clearCartOf)
		return err
	})
}

func (r *Repo) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return orders.Order{}, notFound(err)
	}
	byOrder, err := r.orderItems(ctx, []string{o.ID})
	if err != nil {
		return orders.Order{}, err
	}
	o.Items = byOrder[o.ID]
	return o, nil
}

func (r *Repo) orderItems(ctx context.Context, ids []string) (map[string][]orders.Item, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, total_price
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]orders.Item{}
	for rows.Next() {
		var it orders.Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity,
			&it.UnitPrice, &it.TotalPrice); err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

func (r *Repo) listOrders(ctx context.Context, where string, arg string) ([]orders.Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where+` ORDER BY created_at DESC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []orders.Order{}
	ids := []string{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}
	byOrder, err := r.orderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = byOrder[out[i].ID]
	}
	return out, nil
}

func (r *Repo) ListOrdersByCustomer(ctx context.Context, customerID string) ([]orders.Order, error) {
	return r.listOrders(ctx, "customer_id=$1", customerID)
}

func (r *Repo) ListOrdersByFarmer(ctx context.Context, farmerID string) ([]orders.Order, error) {
	return r.listOrders(ctx, "farmer_id=$1", farmerID)
}

func (r *Repo) UpdateOrderStatus(ctx context.Context, id string, from, to orders.Status, at time.Time) error {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET status=$3, updated_at=$4 WHERE id=$1 AND status=$2`,
		id, string(from), string(to), at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return apperr.ErrNotFound
	}
	return orders.ErrStaleStatus
}

// RateOrder stores the rating and folds it into the farmer's running mean.
func (r *Repo) RateOrder(ctx context.Context, id string, rating float64, review string, at time.Time) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var (
			farmerID string
			existing *float64
		)
		if err := tx.QueryRow(ctx, `SELECT farmer_id, customer_rating FROM orders WHERE id=$1 FOR UPDATE`, id).
			Scan(&farmerID, &existing); err != nil {
			return notFound(err)
		}
		if existing != nil {
			return orders.ErrAlreadyRated
		}
		if _, err := tx.Exec(ctx, `UPDATE orders SET customer_rating=$2, customer_review=$3, updated_at=$4 WHERE id=$1`,
			id, rating, review, at); err != nil {
			return err
		}

		var (
			mean  float64
			count int
		)
		if err := tx.QueryRow(ctx, `SELECT rating, total_reviews FROM users WHERE id=$1 FOR UPDATE`, farmerID).
			Scan(&mean, &count); err != nil {
			return notFound(err)
		}
		mean, count = accounts.FoldRating(mean, count, rating)
		_, err := tx.Exec(ctx, `UPDATE users SET rating=$2, total_reviews=$3, updated_at=$4 WHERE id=$1`,
			farmerID, mean, count, at)
		return err
	})
}
