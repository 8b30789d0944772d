package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-agro-market/internal/accounts"
	"github.com/ariefcatur/go-agro-market/internal/subscriptions"
)

const userColumns = `id, name, email, phone, role, location, latitude, longitude, profile_image_url,
	is_pro_subscriber, subscription_expires_at, is_verified, rating, total_reviews,
	farm_name, farm_description, certifications, established_year, created_at, updated_at`

func scanUser(row pgx.Row) (accounts.User, error) {
	var u accounts.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.Location, &u.Latitude, &u.Longitude,
		&u.ProfileImageURL, &u.IsProSubscriber, &u.SubscriptionExpiresAt, &u.IsVerified, &u.Rating,
		&u.TotalReviews, &u.FarmName, &u.FarmDescription, &u.Certifications, &u.EstablishedYear,
		&u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *Repo) CreateUser(ctx context.Context, u accounts.User, sub subscriptions.Subscription) error {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO users(`+userColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
			u.ID, u.Name, u.Email, u.Phone, string(u.Role), u.Location, u.Latitude, u.Longitude,
			u.ProfileImageURL, u.IsProSubscriber, u.SubscriptionExpiresAt, u.IsVerified, u.Rating,
			u.TotalReviews, u.FarmName, u.FarmDescription, texts(u.Certifications), u.EstablishedYear,
			u.CreatedAt, u.UpdatedAt); err != nil {
			return err
		}
		return insertSubscription(ctx, tx, sub)
	})
	if isUniqueViolation(err) {
		return accounts.ErrEmailTaken
	}
	return err
}

func (r *Repo) GetUser(ctx context.Context, id string) (accounts.User, error) {
	u, err := scanUser(r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	return u, notFound(err)
}

func (r *Repo) UserExists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, id).Scan(&ok)
	return ok, err
}

func (r *Repo) UpdateUser(ctx context.Context, u accounts.User) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE users SET name=$2, phone=$3, location=$4, latitude=$5, longitude=$6,
			profile_image_url=$7, farm_name=$8, farm_description=$9, certifications=$10,
			established_year=$11, updated_at=$12
		WHERE id=$1`,
		u.ID, u.Name, u.Phone, u.Location, u.Latitude, u.Longitude, u.ProfileImageURL,
		u.FarmName, u.FarmDescription, texts(u.Certifications), u.EstablishedYear, u.UpdatedAt)
	if err != nil {
		return err
	}
	return affectedOne(ct)
}

func (r *Repo) ListFarmers(ctx context.Context) ([]accounts.User, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+userColumns+` FROM users WHERE role=$1 ORDER BY id`, string(accounts.RoleFarmer))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []accounts.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

const subscriptionColumns = `id, user_id, plan, start_date, end_date, is_active, auto_renew, payment_method,
	created_at, analytics_access, priority_support, unlimited_listings, featured_listings, commission_rate`

func scanSubscription(row pgx.Row) (subscriptions.Subscription, error) {
	var s subscriptions.Subscription
	err := row.Scan(&s.ID, &s.UserID, &s.Plan, &s.StartDate, &s.EndDate, &s.IsActive, &s.AutoRenew,
		&s.PaymentMethod, &s.CreatedAt, &s.AnalyticsAccess, &s.PrioritySupport, &s.UnlimitedListings,
		&s.FeaturedListings, &s.CommissionRate)
	return s, err
}

func insertSubscription(ctx context.Context, tx pgx.Tx, s subscriptions.Subscription) error {
	_, err := tx.Exec(ctx, `INSERT INTO subscriptions(`+subscriptionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		s.ID, s.UserID, string(s.Plan), s.StartDate, s.EndDate, s.IsActive, s.AutoRenew, s.PaymentMethod,
		s.CreatedAt, s.AnalyticsAccess, s.PrioritySupport, s.UnlimitedListings, s.FeaturedListings,
		s.CommissionRate)
	return err
}

func (r *Repo) ActiveSubscription(ctx context.Context, userID string) (subscriptions.Subscription, error) {
	s, err := scanSubscription(r.DB.QueryRow(ctx, `SELECT `+subscriptionColumns+`
		FROM subscriptions WHERE user_id=$1 AND is_active`, userID))
	return s, notFound(err)
}

func (r *Repo) ListSubscriptions(ctx context.Context, userID string) ([]subscriptions.Subscription, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+subscriptionColumns+`
		FROM subscriptions WHERE user_id=$1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []subscriptions.Subscription{}
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) ReplaceSubscription(ctx context.Context, next subscriptions.Subscription) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		// lock the user row so concurrent changes for one user serialize
		var id string
		if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id=$1 FOR UPDATE`, next.UserID).Scan(&id); err != nil {
			return notFound(err)
		}
		if _, err := tx.Exec(ctx, `UPDATE subscriptions SET is_active=FALSE WHERE user_id=$1 AND is_active`, next.UserID); err != nil {
			return err
		}
		if err := insertSubscription(ctx, tx, next); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE users SET is_pro_subscriber=$2, subscription_expires_at=$3, updated_at=now() WHERE id=$1`,
			next.UserID, next.Plan != subscriptions.PlanFree, next.EndDate)
		return err
	})
}
