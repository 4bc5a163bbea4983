// Package postgres implements marketplace.Store on a pgx pool. Per-entity
// serialization comes from row locks taken with SELECT ... FOR UPDATE.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/quickquid/internal/apperr"
	"github.com/sudo-init-do/quickquid/internal/marketplace"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ marketplace.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func notFound(err error, resource, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(resource, id)
	}
	return fmt.Errorf("load %s %s: %w", resource, id, err)
}

// inTx runs fn in a transaction and commits unless fn fails
func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ---- services ----

const serviceColumns = `id, seq, owner_id, title, description, category, base_price, delivery_days,
	status, rating_average, rating_count, rating_sum, created_at, updated_at, removed_at`

func scanService(row pgx.Row) (*marketplace.Service, error) {
	var svc marketplace.Service
	var status string
	err := row.Scan(&svc.ID, &svc.Seq, &svc.OwnerID, &svc.Title, &svc.Description, &svc.Category,
		&svc.BasePrice, &svc.DeliveryDays, &status, &svc.RatingAverage, &svc.RatingCount,
		&svc.RatingSum, &svc.CreatedAt, &svc.UpdatedAt, &svc.RemovedAt)
	if err != nil {
		return nil, err
	}
	svc.Status = marketplace.ServiceStatus(status)
	return &svc, nil
}

func collectServices(rows pgx.Rows) ([]marketplace.Service, error) {
	defer rows.Close()
	var out []marketplace.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *svc)
	}
	return out, rows.Err()
}

func (s *Store) CreateService(ctx context.Context, svc *marketplace.Service) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO services (id, owner_id, title, description, category, base_price, delivery_days,
			status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING seq`,
		svc.ID, svc.OwnerID, svc.Title, svc.Description, svc.Category, svc.BasePrice,
		svc.DeliveryDays, string(svc.Status), svc.CreatedAt, svc.UpdatedAt,
	).Scan(&svc.Seq)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return apperr.Conflict("service " + svc.ID + " already exists")
		}
		return fmt.Errorf("insert service: %w", err)
	}
	return nil
}

func (s *Store) GetService(ctx context.Context, id string) (*marketplace.Service, error) {
	svc, err := scanService(s.pool.QueryRow(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "service", id)
	}
	return svc, nil
}

func (s *Store) UpdateService(ctx context.Context, id string, fn func(*marketplace.Service) error) (*marketplace.Service, error) {
	var out *marketplace.Service
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		svc, err := scanService(tx.QueryRow(ctx,
			`SELECT `+serviceColumns+` FROM services WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return notFound(err, "service", id)
		}
		if err := fn(svc); err != nil {
			if errors.Is(err, marketplace.ErrNoChange) {
				out = svc
				return nil
			}
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE services SET title = $2, description = $3, category = $4, base_price = $5,
				delivery_days = $6, status = $7, updated_at = $8, removed_at = $9
			 WHERE id = $1`,
			id, svc.Title, svc.Description, svc.Category, svc.BasePrice, svc.DeliveryDays,
			string(svc.Status), svc.UpdatedAt, svc.RemovedAt)
		if err != nil {
			return fmt.Errorf("update service: %w", err)
		}
		out = svc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListListedServices(ctx context.Context) ([]marketplace.Service, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+serviceColumns+` FROM services
		 WHERE status = 'active' AND removed_at IS NULL
		 ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query listed services: %w", err)
	}
	return collectServices(rows)
}

func (s *Store) ListServicesByOwner(ctx context.Context, ownerID string) ([]marketplace.Service, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE owner_id = $1 ORDER BY seq`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query services by owner: %w", err)
	}
	return collectServices(rows)
}

// ---- profiles ----

func (s *Store) UpsertProfile(ctx context.Context, p marketplace.Profile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, display_name, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET display_name = EXCLUDED.display_name, updated_at = EXCLUDED.updated_at`,
		p.UserID, p.DisplayName, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*marketplace.Profile, error) {
	var p marketplace.Profile
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, display_name, updated_at FROM profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.DisplayName, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "profile", userID)
	}
	return &p, nil
}

func (s *Store) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, display_name FROM profiles WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("query display names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}

// ---- hire requests ----

const requestColumns = `id, service_id, buyer_id, seller_id, message, proposed_budget, response_message,
	status, requested_at, responded_at, version`

func scanRequest(row pgx.Row) (*marketplace.HireRequest, error) {
	var r marketplace.HireRequest
	var status string
	err := row.Scan(&r.ID, &r.ServiceID, &r.BuyerID, &r.SellerID, &r.Message, &r.ProposedBudget,
		&r.ResponseMessage, &status, &r.RequestedAt, &r.RespondedAt, &r.Version)
	if err != nil {
		return nil, err
	}
	r.Status = marketplace.RequestStatus(status)
	return &r, nil
}

func (s *Store) CreateRequest(ctx context.Context, r *marketplace.HireRequest) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO hire_requests (id, service_id, buyer_id, seller_id, message, proposed_budget,
			status, requested_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.ServiceID, r.BuyerID, r.SellerID, r.Message, r.ProposedBudget,
		string(r.Status), r.RequestedAt, r.Version)
	if err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return apperr.ConflictState("you already have a pending request for this service", string(marketplace.RequestPending))
		case pgForeignKeyViolation:
			return apperr.NotFound("service", r.ServiceID)
		}
		return fmt.Errorf("insert hire request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (*marketplace.HireRequest, error) {
	r, err := scanRequest(s.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM hire_requests WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "hire request", id)
	}
	return r, nil
}

func (s *Store) ListRequests(ctx context.Context, f marketplace.RequestFilter) ([]marketplace.HireRequest, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+requestColumns+` FROM hire_requests
		 WHERE ($1 = '' OR buyer_id = $1)
		   AND ($2 = '' OR seller_id = $2)
		   AND ($3 = '' OR service_id = $3)
		   AND ($4 = '' OR status = $4)
		 ORDER BY seq DESC`,
		f.BuyerID, f.SellerID, f.ServiceID, string(f.Status))
	if err != nil {
		return nil, fmt.Errorf("query hire requests: %w", err)
	}
	defer rows.Close()

	var out []marketplace.HireRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) ListStaleRequests(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM hire_requests WHERE status = 'pending' AND requested_at < $1 ORDER BY seq`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query stale requests: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) MutateRequest(ctx context.Context, id string, fn func(*marketplace.HireRequest) (*marketplace.Order, error)) (*marketplace.HireRequest, *marketplace.Order, error) {
	var (
		req   *marketplace.HireRequest
		order *marketplace.Order
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		req, err = scanRequest(tx.QueryRow(ctx,
			`SELECT `+requestColumns+` FROM hire_requests WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return notFound(err, "hire request", id)
		}

		order, err = fn(req)
		if err != nil {
			if errors.Is(err, marketplace.ErrNoChange) {
				order = nil
				return nil
			}
			return err
		}

		req.Version++
		_, err = tx.Exec(ctx,
			`UPDATE hire_requests SET status = $2, response_message = $3, responded_at = $4, version = $5
			 WHERE id = $1`,
			id, string(req.Status), req.ResponseMessage, req.RespondedAt, req.Version)
		if err != nil {
			return fmt.Errorf("update hire request: %w", err)
		}

		if order != nil {
			if err := insertOrder(ctx, tx, order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return req, order, nil
}

// ---- orders ----

const orderColumns = `id, hire_request_id, service_id, buyer_id, seller_id, agreed_price, status,
	created_at, due_at, delivered_at, completed_at, cancelled_at, cancelled_by, cancel_reason, version`

func scanOrder(row pgx.Row) (*marketplace.Order, error) {
	var o marketplace.Order
	var status string
	err := row.Scan(&o.ID, &o.HireRequestID, &o.ServiceID, &o.BuyerID, &o.SellerID, &o.AgreedPrice,
		&status, &o.CreatedAt, &o.DueAt, &o.DeliveredAt, &o.CompletedAt, &o.CancelledAt,
		&o.CancelledBy, &o.CancelReason, &o.Version)
	if err != nil {
		return nil, err
	}
	o.Status = marketplace.OrderStatus(status)
	return &o, nil
}

func insertOrder(ctx context.Context, tx pgx.Tx, o *marketplace.Order) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO orders (id, hire_request_id, service_id, buyer_id, seller_id, agreed_price, status,
			created_at, due_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.HireRequestID, o.ServiceID, o.BuyerID, o.SellerID, o.AgreedPrice, string(o.Status),
		o.CreatedAt, o.DueAt, o.Version)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return apperr.Conflict("request already has an order")
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*marketplace.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "order", id)
	}
	return o, nil
}

func (s *Store) GetOrderByRequest(ctx context.Context, requestID string) (*marketplace.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE hire_request_id = $1`, requestID))
	if err != nil {
		return nil, notFound(err, "order for request", requestID)
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, f marketplace.OrderFilter) ([]marketplace.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE ($1 = '' OR buyer_id = $1)
		   AND ($2 = '' OR seller_id = $2)
		   AND ($3 = '' OR status = $3)
		 ORDER BY seq DESC`,
		f.BuyerID, f.SellerID, string(f.Status))
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []marketplace.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *Store) MutateOrder(ctx context.Context, id string, fn func(*marketplace.Order) error) (*marketplace.Order, error) {
	var order *marketplace.Order
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		order, err = scanOrder(tx.QueryRow(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return notFound(err, "order", id)
		}
		if err := fn(order); err != nil {
			if errors.Is(err, marketplace.ErrNoChange) {
				return nil
			}
			return err
		}

		order.Version++
		_, err = tx.Exec(ctx,
			`UPDATE orders SET status = $2, delivered_at = $3, completed_at = $4, cancelled_at = $5,
				cancelled_by = $6, cancel_reason = $7, version = $8
			 WHERE id = $1`,
			id, string(order.Status), order.DeliveredAt, order.CompletedAt, order.CancelledAt,
			order.CancelledBy, order.CancelReason, order.Version)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ---- reviews ----

const reviewColumns = `id, order_id, service_id, seller_id, author_id, rating, comment, created_at`

func scanReview(row pgx.Row) (*marketplace.Review, error) {
	var r marketplace.Review
	err := row.Scan(&r.ID, &r.OrderID, &r.ServiceID, &r.SellerID, &r.AuthorID, &r.Rating, &r.Comment, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) AppendReview(ctx context.Context, r *marketplace.Review, fn func(*marketplace.Service)) (*marketplace.Service, error) {
	var svc *marketplace.Service
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		svc, err = scanService(tx.QueryRow(ctx,
			`SELECT `+serviceColumns+` FROM services WHERE id = $1 FOR UPDATE`, r.ServiceID))
		if err != nil {
			return notFound(err, "service", r.ServiceID)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO reviews (id, order_id, service_id, seller_id, author_id, rating, comment, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			r.ID, r.OrderID, r.ServiceID, r.SellerID, r.AuthorID, r.Rating, r.Comment, r.CreatedAt)
		if err != nil {
			if pgCode(err) == pgUniqueViolation {
				return apperr.Conflict("order has already been reviewed")
			}
			return fmt.Errorf("insert review: %w", err)
		}

		fn(svc)
		_, err = tx.Exec(ctx,
			`UPDATE services SET rating_sum = $2, rating_count = $3, rating_average = $4 WHERE id = $1`,
			svc.ID, svc.RatingSum, svc.RatingCount, svc.RatingAverage)
		if err != nil {
			return fmt.Errorf("update service rating: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Store) GetReviewByOrder(ctx context.Context, orderID string) (*marketplace.Review, error) {
	r, err := scanReview(s.pool.QueryRow(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE order_id = $1`, orderID))
	if err != nil {
		return nil, notFound(err, "review for order", orderID)
	}
	return r, nil
}

func (s *Store) ListReviewsByService(ctx context.Context, serviceID string) ([]marketplace.Review, error) {
	return s.listReviews(ctx, `WHERE service_id = $1`, serviceID)
}

func (s *Store) ListReviewsBySeller(ctx context.Context, sellerID string) ([]marketplace.Review, error) {
	return s.listReviews(ctx, `WHERE seller_id = $1`, sellerID)
}

func (s *Store) listReviews(ctx context.Context, where string, arg string) ([]marketplace.Review, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reviewColumns+` FROM reviews `+where+` ORDER BY seq DESC`, arg)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var out []marketplace.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
