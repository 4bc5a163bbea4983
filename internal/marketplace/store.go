package marketplace

import (
	"context"
	"errors"
	"time"
)

// ErrNoChange may be returned from a mutation callback to leave the entity
// untouched without failing the call.
var ErrNoChange = errors.New("no change")

// RequestFilter narrows ListRequests. Empty fields match everything.
type RequestFilter struct {
	BuyerID   string
	SellerID  string
	ServiceID string
	Status    RequestStatus
}

// OrderFilter narrows ListOrders. Empty fields match everything.
type OrderFilter struct {
	BuyerID  string
	SellerID string
	Status   OrderStatus
}

// Store is the keyed persistence behind the marketplace. Every mutation of a
// single request, order or service is serialized per id by the implementation.
//
// Lookups of unknown ids return an apperr NotFoundError.
type Store interface {
	CreateService(ctx context.Context, s *Service) error
	GetService(ctx context.Context, id string) (*Service, error)
	// UpdateService applies fn to the current service under the service's lock
	UpdateService(ctx context.Context, id string, fn func(*Service) error) (*Service, error)
	// ListListedServices returns active, non-removed services in insertion order
	ListListedServices(ctx context.Context) ([]Service, error)
	ListServicesByOwner(ctx context.Context, ownerID string) ([]Service, error)

	UpsertProfile(ctx context.Context, p Profile) error
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)

	// CreateRequest inserts a pending request and fails with a ConflictError
	// if the buyer already holds a pending request for the same service.
	CreateRequest(ctx context.Context, r *HireRequest) error
	GetRequest(ctx context.Context, id string) (*HireRequest, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]HireRequest, error)
	// ListStaleRequests returns ids of pending requests made before cutoff
	ListStaleRequests(ctx context.Context, cutoff time.Time) ([]string, error)
	// MutateRequest applies fn under the request's lock. If fn returns a
	// non-nil order, the order is inserted in the same commit as the request.
	MutateRequest(ctx context.Context, id string, fn func(*HireRequest) (*Order, error)) (*HireRequest, *Order, error)

	GetOrder(ctx context.Context, id string) (*Order, error)
	GetOrderByRequest(ctx context.Context, requestID string) (*Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]Order, error)
	MutateOrder(ctx context.Context, id string, fn func(*Order) error) (*Order, error)

	// AppendReview inserts the review and applies fn to its service in one
	// commit. A second review for the same order is a ConflictError.
	AppendReview(ctx context.Context, r *Review, fn func(*Service)) (*Service, error)
	GetReviewByOrder(ctx context.Context, orderID string) (*Review, error)
	// ListReviewsByService returns reviews newest first
	ListReviewsByService(ctx context.Context, serviceID string) ([]Review, error)
	ListReviewsBySeller(ctx context.Context, sellerID string) ([]Review, error)
}

// QueryCache memoizes catalog results. Invalidate drops every cached entry.
// Get reports the cache generation it read; Set stores under that generation
// so a result computed before an Invalidate never lands in the newer one.
// A negative generation means the cache is unavailable and Set is skipped.
type QueryCache interface {
	Get(ctx context.Context, key string) (res *QueryResult, generation int64, ok bool)
	Set(ctx context.Context, key string, generation int64, res *QueryResult)
	Invalidate(ctx context.Context)
}
