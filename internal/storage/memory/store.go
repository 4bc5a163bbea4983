// Package memory is a process-local marketplace.Store used by tests and by
// DB_DRIVER=memory deployments.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sudo-init-do/quickquid/internal/apperr"
	"github.com/sudo-init-do/quickquid/internal/marketplace"
)

// Store keeps every collection in maps. Mutations of one entity are serialized
// by a per-id lock; the commit itself swaps values under the collection lock so
// readers never observe half of a multi-entity change.
type Store struct {
	locks *keyedMutex

	mu             sync.RWMutex
	seq            int64
	services       map[string]*marketplace.Service
	serviceOrder   []string
	profiles       map[string]marketplace.Profile
	requests       map[string]*marketplace.HireRequest
	requestOrder   []string
	orders         map[string]*marketplace.Order
	orderOrder     []string
	orderByRequest map[string]string
	reviews        map[string]*marketplace.Review // by order id
	reviewOrder    []string
}

var _ marketplace.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		locks:          newKeyedMutex(),
		services:       make(map[string]*marketplace.Service),
		profiles:       make(map[string]marketplace.Profile),
		requests:       make(map[string]*marketplace.HireRequest),
		orders:         make(map[string]*marketplace.Order),
		orderByRequest: make(map[string]string),
		reviews:        make(map[string]*marketplace.Review),
	}
}

// ---- services ----

func (s *Store) CreateService(ctx context.Context, svc *marketplace.Service) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.services[svc.ID]; exists {
		return apperr.Conflict("service " + svc.ID + " already exists")
	}
	s.seq++
	svc.Seq = s.seq
	cp := *svc
	s.services[svc.ID] = &cp
	s.serviceOrder = append(s.serviceOrder, svc.ID)
	return nil
}

func (s *Store) GetService(ctx context.Context, id string) (*marketplace.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[id]
	if !ok {
		return nil, apperr.NotFound("service", id)
	}
	cp := *svc
	return &cp, nil
}

func (s *Store) UpdateService(ctx context.Context, id string, fn func(*marketplace.Service) error) (*marketplace.Service, error) {
	unlock := s.locks.Lock("svc:" + id)
	defer unlock()

	cur, err := s.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(cur); err != nil {
		if errors.Is(err, marketplace.ErrNoChange) {
			return s.GetService(ctx, id)
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cur
	s.services[id] = &cp
	return cur, nil
}

func (s *Store) ListListedServices(ctx context.Context) ([]marketplace.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]marketplace.Service, 0, len(s.serviceOrder))
	for _, id := range s.serviceOrder {
		if svc := s.services[id]; svc.Listed() {
			out = append(out, *svc)
		}
	}
	return out, nil
}

func (s *Store) ListServicesByOwner(ctx context.Context, ownerID string) ([]marketplace.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []marketplace.Service
	for _, id := range s.serviceOrder {
		if svc := s.services[id]; svc.OwnerID == ownerID {
			out = append(out, *svc)
		}
	}
	return out, nil
}

// ---- profiles ----

func (s *Store) UpsertProfile(ctx context.Context, p marketplace.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*marketplace.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, apperr.NotFound("profile", userID)
	}
	return &p, nil
}

func (s *Store) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if p, ok := s.profiles[id]; ok {
			out[id] = p.DisplayName
		}
	}
	return out, nil
}

// ---- hire requests ----

func (s *Store) CreateRequest(ctx context.Context, r *marketplace.HireRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.BuyerID == r.BuyerID &&
			existing.ServiceID == r.ServiceID &&
			existing.Status == marketplace.RequestPending {
			return apperr.ConflictState("you already have a pending request for this service", string(existing.Status))
		}
	}
	cp := *r
	s.requests[r.ID] = &cp
	s.requestOrder = append(s.requestOrder, r.ID)
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (*marketplace.HireRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, apperr.NotFound("hire request", id)
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ListRequests(ctx context.Context, f marketplace.RequestFilter) ([]marketplace.HireRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []marketplace.HireRequest
	for i := len(s.requestOrder) - 1; i >= 0; i-- {
		r := s.requests[s.requestOrder[i]]
		if f.BuyerID != "" && r.BuyerID != f.BuyerID {
			continue
		}
		if f.SellerID != "" && r.SellerID != f.SellerID {
			continue
		}
		if f.ServiceID != "" && r.ServiceID != f.ServiceID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (s *Store) ListStaleRequests(ctx context.Context, cutoff time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, id := range s.requestOrder {
		r := s.requests[id]
		if r.Status == marketplace.RequestPending && r.RequestedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Store) MutateRequest(ctx context.Context, id string, fn func(*marketplace.HireRequest) (*marketplace.Order, error)) (*marketplace.HireRequest, *marketplace.Order, error) {
	unlock := s.locks.Lock("req:" + id)
	defer unlock()

	cur, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	order, err := fn(cur)
	if err != nil {
		if errors.Is(err, marketplace.ErrNoChange) {
			latest, err := s.GetRequest(ctx, id)
			return latest, nil, err
		}
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if order != nil {
		if _, taken := s.orderByRequest[id]; taken {
			return nil, nil, apperr.Conflict("request already has an order")
		}
		oc := *order
		s.orders[order.ID] = &oc
		s.orderOrder = append(s.orderOrder, order.ID)
		s.orderByRequest[id] = order.ID
	}
	cur.Version++
	rc := *cur
	s.requests[id] = &rc
	return cur, order, nil
}

// ---- orders ----

func (s *Store) GetOrder(ctx context.Context, id string) (*marketplace.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, apperr.NotFound("order", id)
	}
	cp := *o
	return &cp, nil
}

func (s *Store) GetOrderByRequest(ctx context.Context, requestID string) (*marketplace.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.orderByRequest[requestID]
	if !ok {
		return nil, apperr.NotFound("order for request", requestID)
	}
	cp := *s.orders[id]
	return &cp, nil
}

func (s *Store) ListOrders(ctx context.Context, f marketplace.OrderFilter) ([]marketplace.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []marketplace.Order
	for i := len(s.orderOrder) - 1; i >= 0; i-- {
		o := s.orders[s.orderOrder[i]]
		if f.BuyerID != "" && o.BuyerID != f.BuyerID {
			continue
		}
		if f.SellerID != "" && o.SellerID != f.SellerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (s *Store) MutateOrder(ctx context.Context, id string, fn func(*marketplace.Order) error) (*marketplace.Order, error) {
	unlock := s.locks.Lock("ord:" + id)
	defer unlock()

	cur, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(cur); err != nil {
		if errors.Is(err, marketplace.ErrNoChange) {
			return s.GetOrder(ctx, id)
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur.Version++
	cp := *cur
	s.orders[id] = &cp
	return cur, nil
}

// ---- reviews ----

func (s *Store) AppendReview(ctx context.Context, r *marketplace.Review, fn func(*marketplace.Service)) (*marketplace.Service, error) {
	unlock := s.locks.Lock("svc:" + r.ServiceID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reviews[r.OrderID]; exists {
		return nil, apperr.Conflict("order has already been reviewed")
	}
	svc, ok := s.services[r.ServiceID]
	if !ok {
		return nil, apperr.NotFound("service", r.ServiceID)
	}
	updated := *svc
	fn(&updated)

	rc := *r
	s.reviews[r.OrderID] = &rc
	s.reviewOrder = append(s.reviewOrder, r.OrderID)
	s.services[svc.ID] = &updated
	out := updated
	return &out, nil
}

func (s *Store) GetReviewByOrder(ctx context.Context, orderID string) (*marketplace.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[orderID]
	if !ok {
		return nil, apperr.NotFound("review for order", orderID)
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ListReviewsByService(ctx context.Context, serviceID string) ([]marketplace.Review, error) {
	return s.listReviews(ctx, func(r *marketplace.Review) bool { return r.ServiceID == serviceID })
}

func (s *Store) ListReviewsBySeller(ctx context.Context, sellerID string) ([]marketplace.Review, error) {
	return s.listReviews(ctx, func(r *marketplace.Review) bool { return r.SellerID == sellerID })
}

func (s *Store) listReviews(ctx context.Context, keep func(*marketplace.Review) bool) ([]marketplace.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []marketplace.Review
	for i := len(s.reviewOrder) - 1; i >= 0; i-- {
		if r := s.reviews[s.reviewOrder[i]]; keep(r) {
			out = append(out, *r)
		}
	}
	return out, nil
}
