package marketplace

import (
	"time"
)

// ServiceStatus is the publication state of a listing
type ServiceStatus string

const (
	ServiceDraft  ServiceStatus = "draft"
	ServiceActive ServiceStatus = "active"
	ServicePaused ServiceStatus = "paused"
)

// RequestStatus is the lifecycle state of a hire request
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDeclined RequestStatus = "declined"
	RequestExpired  RequestStatus = "expired"
)

// Terminal reports whether no further transition is allowed
func (s RequestStatus) Terminal() bool { return s != RequestPending }

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestAccepted, RequestDeclined, RequestExpired:
		return true
	}
	return false
}

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderInProgress OrderStatus = "in_progress"
	OrderDelivered  OrderStatus = "delivered"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Terminal() bool { return s == OrderCompleted || s == OrderCancelled }

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderInProgress, OrderDelivered, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Decision is a seller's answer to a hire request
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// Service represents a fixed-scope offering listed by a seller
type Service struct {
	ID            string        `json:"id"`
	OwnerID       string        `json:"owner_id"`
	Title         string        `json:"title"`
	Description   string        `json:"description,omitempty"`
	Category      string        `json:"category"`
	BasePrice     int64         `json:"base_price"`
	DeliveryDays  int           `json:"delivery_days"`
	Status        ServiceStatus `json:"status"`
	RatingAverage float64       `json:"rating_average"`
	RatingCount   int           `json:"rating_count"`
	RatingSum     int64         `json:"-"`
	Seq           int64         `json:"-"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	RemovedAt     *time.Time    `json:"removed_at,omitempty"`
}

// Listed reports whether the service can appear in the catalog and accept requests
func (s *Service) Listed() bool {
	return s.Status == ServiceActive && s.RemovedAt == nil
}

// ApplyRating folds one more rating into the running mean
func (s *Service) ApplyRating(rating int) {
	s.RatingSum += int64(rating)
	s.RatingCount++
	s.RatingAverage = float64(s.RatingSum) / float64(s.RatingCount)
}

// ServiceSummary is a catalog entry with the seller's display name resolved
type ServiceSummary struct {
	Service
	SellerName string `json:"seller_name,omitempty"`
}

// HireRequest is a buyer's proposal to engage a service
type HireRequest struct {
	ID              string        `json:"id"`
	ServiceID       string        `json:"service_id"`
	BuyerID         string        `json:"buyer_id"`
	SellerID        string        `json:"seller_id"`
	Message         string        `json:"message"`
	ProposedBudget  int64         `json:"proposed_budget"`
	ResponseMessage string        `json:"response_message,omitempty"`
	Status          RequestStatus `json:"status"`
	RequestedAt     time.Time     `json:"requested_at"`
	RespondedAt     *time.Time    `json:"responded_at,omitempty"`
	Version         int           `json:"version"`
}

// Order is a priced engagement created when a hire request is accepted
type Order struct {
	ID            string      `json:"id"`
	HireRequestID string      `json:"hire_request_id"`
	ServiceID     string      `json:"service_id"`
	BuyerID       string      `json:"buyer_id"`
	SellerID      string      `json:"seller_id"`
	AgreedPrice   int64       `json:"agreed_price"`
	Status        OrderStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	DueAt         time.Time   `json:"due_at"`
	DeliveredAt   *time.Time  `json:"delivered_at,omitempty"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
	CancelledAt   *time.Time  `json:"cancelled_at,omitempty"`
	CancelledBy   string      `json:"cancelled_by,omitempty"`
	CancelReason  string      `json:"cancel_reason,omitempty"`
	Version       int         `json:"version"`
}

// Participant reports whether userID is the buyer or the seller of the order
func (o *Order) Participant(userID string) bool {
	return userID != "" && (o.BuyerID == userID || o.SellerID == userID)
}

// Review represents a rating given by a buyer for a completed order
type Review struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	ServiceID string    `json:"service_id"`
	SellerID  string    `json:"seller_id"`
	AuthorID  string    `json:"author_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// RatingSummary aggregates the reviews of one service or one seller
type RatingSummary struct {
	ServiceID     string  `json:"service_id,omitempty"`
	TotalReviews  int     `json:"total_reviews"`
	AverageRating float64 `json:"average_rating"`
	RatingCounts  struct {
		FiveStar  int `json:"five_star"`
		FourStar  int `json:"four_star"`
		ThreeStar int `json:"three_star"`
		TwoStar   int `json:"two_star"`
		OneStar   int `json:"one_star"`
	} `json:"rating_counts"`
}

// Profile carries the public name shown next to a seller's listings
type Profile struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SellerStats backs the seller dashboard
type SellerStats struct {
	ActiveServices  int     `json:"active_services"`
	ActiveOrders    int     `json:"active_orders"`
	CompletedOrders int     `json:"completed_orders"`
	CancelledOrders int     `json:"cancelled_orders"`
	PendingRequests int     `json:"pending_requests"`
	AverageRating   float64 `json:"average_rating"`
	ReviewCount     int     `json:"review_count"`
	TotalEarnings   int64   `json:"total_earnings"`
	CompletionRate  float64 `json:"completion_rate"`
}
