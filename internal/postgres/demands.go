package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-agro-market/internal/apperr"
	"github.com/ariefcatur/go-agro-market/internal/demands"
)

const demandColumns = `id, requester_id, title, description, category, quantity, unit, max_price, location,
	latitude, longitude, required_by, is_urgent, is_organic, quality_requirements, delivery_preference,
	status, created_at, updated_at, tags`

const responseColumns = `id, request_id, farmer_id, farmer_name, offered_price, available_quantity, message,
	created_at, is_accepted, product_samples`

func scanDemand(row pgx.Row) (demands.Demand, error) {
	var d demands.Demand
	err := row.Scan(&d.ID, &d.RequesterID, &d.Title, &d.Description, &d.Category, &d.Quantity, &d.Unit,
		&d.MaxPrice, &d.Location, &d.Latitude, &d.Longitude, &d.RequiredBy, &d.IsUrgent, &d.IsOrganic,
		&d.QualityRequirements, &d.DeliveryPreference, &d.Status, &d.CreatedAt, &d.UpdatedAt, &d.Tags)
	d.Responses = []demands.Response{}
	return d, err
}

func (r *Repo) CreateDemand(ctx context.Context, d demands.Demand) error {
	_, err := r.DB.Exec(ctx, `INSERT INTO demands(`+demandColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		d.ID, d.RequesterID, d.Title, d.Description, string(d.Category), d.Quantity, d.Unit, d.MaxPrice,
		d.Location, d.Latitude, d.Longitude, d.RequiredBy, d.IsUrgent, d.IsOrganic,
		texts(d.QualityRequirements), string(d.DeliveryPreference), string(d.Status), d.CreatedAt,
		d.UpdatedAt, texts(d.Tags))
	return err
}

func (r *Repo) responses(ctx context.Context, ids []string) (map[string][]demands.Response, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+responseColumns+`
		FROM demand_responses WHERE request_id = ANY($1) ORDER BY created_at, id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]demands.Response{}
	for rows.Next() {
		var res demands.Response
		if err := rows.Scan(&res.ID, &res.RequestID, &res.FarmerID, &res.FarmerName, &res.OfferedPrice,
			&res.AvailableQuantity, &res.Message, &res.CreatedAt, &res.IsAccepted, &res.ProductSamples); err != nil {
			return nil, err
		}
		out[res.RequestID] = append(out[res.RequestID], res)
	}
	return out, rows.Err()
}

func (r *Repo) GetDemand(ctx context.Context, id string) (demands.Demand, error) {
	d, err := scanDemand(r.DB.QueryRow(ctx, `SELECT `+demandColumns+` FROM demands WHERE id=$1`, id))
	if err != nil {
		return demands.Demand{}, notFound(err)
	}
	byDemand, err := r.responses(ctx, []string{id})
	if err != nil {
		return demands.Demand{}, err
	}
	if rs, ok := byDemand[id]; ok {
		d.Responses = rs
	}
	return d, nil
}

func (r *Repo) ListDemands(ctx context.Context) ([]demands.Demand, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+demandColumns+` FROM demands ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []demands.Demand{}
	ids := []string{}
	for rows.Next() {
		d, err := scanDemand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
		ids = append(ids, d.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}
	byDemand, err := r.responses(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if rs, ok := byDemand[out[i].ID]; ok {
			out[i].Responses = rs
		}
	}
	return out, nil
}

func (r *Repo) UpdateDemandStatus(ctx context.Context, id string, from, to demands.Status, at time.Time) error {
	ct, err := r.DB.Exec(ctx, `UPDATE demands SET status=$3, updated_at=$4 WHERE id=$1 AND status=$2`,
		id, string(from), string(to), at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM demands WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return apperr.ErrNotFound
	}
	return demands.ErrStaleStatus
}

func (r *Repo) AddResponse(ctx context.Context, res demands.Response) error {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var status demands.Status
		if err := tx.QueryRow(ctx, `SELECT status FROM demands WHERE id=$1 FOR UPDATE`, res.RequestID).Scan(&status); err != nil {
			return notFound(err)
		}
		if status != demands.StatusOpen {
			return demands.ErrNotOpen
		}
		if _, err := tx.Exec(ctx, `INSERT INTO demand_responses(`+responseColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			res.ID, res.RequestID, res.FarmerID, res.FarmerName, res.OfferedPrice, res.AvailableQuantity,
			res.Message, res.CreatedAt, res.IsAccepted, texts(res.ProductSamples)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE demands SET updated_at=$2 WHERE id=$1`, res.RequestID, res.CreatedAt)
		return err
	})
	if isUniqueViolation(err) {
		return demands.ErrAlreadyResponded
	}
	return err
}

func (r *Repo) AcceptResponse(ctx context.Context, demandID, responseID string, at time.Time) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var status demands.Status
		if err := tx.QueryRow(ctx, `SELECT status FROM demands WHERE id=$1 FOR UPDATE`, demandID).Scan(&status); err != nil {
			return notFound(err)
		}
		if status != demands.StatusOpen {
			return demands.ErrStaleStatus
		}
		ct, err := tx.Exec(ctx, `UPDATE demand_responses SET is_accepted = (id = $2) WHERE request_id=$1`, demandID, responseID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return demands.ErrResponseNotFound
		}
		var accepted int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM demand_responses WHERE request_id=$1 AND is_accepted`, demandID).
			Scan(&accepted); err != nil {
			return err
		}
		if accepted != 1 {
			return demands.ErrResponseNotFound
		}
		_, err = tx.Exec(ctx, `UPDATE demands SET status=$2, updated_at=$3 WHERE id=$1`,
			demandID, string(demands.StatusInProgress), at)
		return err
	})
}

func (r *Repo) ExpireDemands(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.DB.Query(ctx, `
		UPDATE demands SET status=$1, updated_at=$2
		WHERE status IN ($3, $4) AND required_by < $2
		RETURNING id`,
		string(demands.StatusExpired), now, string(demands.StatusOpen), string(demands.StatusInProgress))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
