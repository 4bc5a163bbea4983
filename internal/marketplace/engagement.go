package marketplace

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sudo-init-do/quickquid/internal/apperr"
	"github.com/sudo-init-do/quickquid/internal/identity"
	"github.com/sudo-init-do/quickquid/internal/logging"
)

// Engagements drives hire requests and orders through their lifecycle.
type Engagements struct {
	*base
}

// SubmitRequest creates a pending hire request from a buyer for a listed service.
func (e *Engagements) SubmitRequest(ctx context.Context, who identity.Identity, serviceID, message string, proposedBudget int64) (*HireRequest, error) {
	if err := requireRole(who, identity.RoleBuyer); err != nil {
		return nil, err
	}
	if proposedBudget <= 0 {
		return nil, apperr.InvalidField("proposed_budget", "must be greater than zero")
	}
	message = strings.TrimSpace(message)
	if utf8.RuneCountInString(message) > maxMessageLength {
		return nil, apperr.InvalidField("message", fmt.Sprintf("must be at most %d characters", maxMessageLength))
	}

	svc, err := e.store.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if svc.OwnerID == who.UserID {
		return nil, apperr.Validation("you cannot request your own service")
	}
	if !svc.Listed() {
		return nil, apperr.ConflictState("service is not accepting requests", string(svc.Status))
	}

	// a stale pending request must not block a fresh one
	pending, err := e.store.ListRequests(ctx, RequestFilter{
		BuyerID:   who.UserID,
		ServiceID: serviceID,
		Status:    RequestPending,
	})
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	for _, p := range pending {
		if _, err := e.expireIfStale(ctx, p.ID, e.now()); err != nil {
			return nil, err
		}
	}

	req := &HireRequest{
		ID:             uuid.NewString(),
		ServiceID:      svc.ID,
		BuyerID:        who.UserID,
		SellerID:       svc.OwnerID,
		Message:        message,
		ProposedBudget: proposedBudget,
		Status:         RequestPending,
		RequestedAt:    e.now(),
		Version:        1,
	}
	if err := e.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	e.transition("hire_request", req.ID, "", string(RequestPending), who.UserID)
	e.log.Debug().
		Str("request_id", req.ID).
		Str("service_id", req.ServiceID).
		Int64("proposed_budget", req.ProposedBudget).
		Str("message", logging.SanitizeForLog(req.Message, 80)).
		Msg("hire request submitted")
	e.publish(ctx, requestEvent(EventRequestSubmitted, req, req.RequestedAt))
	return req, nil
}

// RespondToRequest lets the addressed seller accept or decline a pending
// request. Accepting creates the order in the same commit. Accepting an
// already accepted request returns its existing order.
func (e *Engagements) RespondToRequest(ctx context.Context, who identity.Identity, requestID string, decision Decision, responseMessage string) (*HireRequest, *Order, error) {
	if err := requireIdentity(who); err != nil {
		return nil, nil, err
	}
	if decision != DecisionAccept && decision != DecisionDecline {
		return nil, nil, apperr.InvalidField("decision", "must be accept or decline")
	}
	responseMessage = strings.TrimSpace(responseMessage)
	if utf8.RuneCountInString(responseMessage) > maxMessageLength {
		return nil, nil, apperr.InvalidField("response_message", fmt.Sprintf("must be at most %d characters", maxMessageLength))
	}

	current, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if current.SellerID != who.UserID || !who.IsSeller() {
		return nil, nil, apperr.Forbidden("only the addressed seller can respond to this request")
	}

	var deliveryDays int
	if decision == DecisionAccept {
		svc, err := e.store.GetService(ctx, current.ServiceID)
		if err != nil {
			return nil, nil, fmt.Errorf("load service for request %s: %w", requestID, err)
		}
		deliveryDays = svc.DeliveryDays
	}

	now := e.now()
	var (
		expired  bool
		replayed bool
		from     RequestStatus
	)
	req, order, err := e.store.MutateRequest(ctx, requestID, func(r *HireRequest) (*Order, error) {
		from = r.Status
		if r.SellerID != who.UserID {
			return nil, apperr.Forbidden("only the addressed seller can respond to this request")
		}
		if r.Status == RequestAccepted && decision == DecisionAccept {
			replayed = true
			return nil, ErrNoChange
		}
		if r.Status.Terminal() {
			return nil, apperr.ConflictState("request has already been answered", string(r.Status))
		}
		if e.stale(r, now) {
			expired = true
			r.Status = RequestExpired
			return nil, nil
		}

		r.ResponseMessage = responseMessage
		r.RespondedAt = &now
		if decision == DecisionDecline {
			r.Status = RequestDeclined
			return nil, nil
		}

		r.Status = RequestAccepted
		return &Order{
			ID:            uuid.NewString(),
			HireRequestID: r.ID,
			ServiceID:     r.ServiceID,
			BuyerID:       r.BuyerID,
			SellerID:      r.SellerID,
			AgreedPrice:   r.ProposedBudget,
			Status:        OrderInProgress,
			CreatedAt:     now,
			DueAt:         now.AddDate(0, 0, deliveryDays),
			Version:       1,
		}, nil
	})
	if err != nil {
		return nil, nil, err
	}

	if replayed {
		existing, err := e.store.GetOrderByRequest(ctx, requestID)
		if err != nil {
			return nil, nil, fmt.Errorf("load order for accepted request %s: %w", requestID, err)
		}
		return req, existing, nil
	}

	e.transition("hire_request", req.ID, string(from), string(req.Status), who.UserID)

	if expired {
		e.publish(ctx, requestEvent(EventRequestExpired, req, now))
		return nil, nil, apperr.ConflictState("request expired before it was answered", string(RequestExpired))
	}

	if order != nil {
		e.transition("order", order.ID, "", string(order.Status), who.UserID)
		e.publish(ctx, requestEvent(EventRequestAccepted, req, now))
	} else {
		e.publish(ctx, requestEvent(EventRequestDeclined, req, now))
	}
	return req, order, nil
}

// MarkDelivered moves an in-progress order to delivered. Seller only.
func (e *Engagements) MarkDelivered(ctx context.Context, who identity.Identity, orderID string) (*Order, error) {
	if err := requireIdentity(who); err != nil {
		return nil, err
	}
	now := e.now()
	order, from, err := e.mutateOrder(ctx, orderID, func(o *Order) error {
		if o.SellerID != who.UserID || !who.IsSeller() {
			return apperr.Forbidden("only the seller can mark this order delivered")
		}
		if o.Status != OrderInProgress {
			return apperr.ConflictState("only in-progress orders can be delivered", string(o.Status))
		}
		o.Status = OrderDelivered
		o.DeliveredAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.transition("order", order.ID, string(from), string(order.Status), who.UserID)
	e.publish(ctx, orderEvent(EventOrderDelivered, order, now))
	return order, nil
}

// MarkCompleted accepts a delivered order. Buyer only.
func (e *Engagements) MarkCompleted(ctx context.Context, who identity.Identity, orderID string) (*Order, error) {
	if err := requireIdentity(who); err != nil {
		return nil, err
	}
	now := e.now()
	order, from, err := e.mutateOrder(ctx, orderID, func(o *Order) error {
		if o.BuyerID != who.UserID || !who.IsBuyer() {
			return apperr.Forbidden("only the buyer can complete this order")
		}
		if o.Status != OrderDelivered {
			return apperr.ConflictState("only delivered orders can be completed", string(o.Status))
		}
		o.Status = OrderCompleted
		o.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.transition("order", order.ID, string(from), string(order.Status), who.UserID)
	e.publish(ctx, orderEvent(EventOrderCompleted, order, now))
	return order, nil
}

// Cancel stops an order that is still in progress or awaiting acceptance of
// its delivery. Either participant may cancel.
func (e *Engagements) Cancel(ctx context.Context, who identity.Identity, orderID, reason string) (*Order, error) {
	if err := requireIdentity(who); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > maxCancelReasonLength {
		return nil, apperr.InvalidField("reason", fmt.Sprintf("must be at most %d characters", maxCancelReasonLength))
	}

	now := e.now()
	order, from, err := e.mutateOrder(ctx, orderID, func(o *Order) error {
		if !o.Participant(who.UserID) {
			return apperr.Forbidden("only the buyer or the seller can cancel this order")
		}
		if o.Status != OrderInProgress && o.Status != OrderDelivered {
			return apperr.ConflictState("order can no longer be cancelled", string(o.Status))
		}
		o.Status = OrderCancelled
		o.CancelledAt = &now
		o.CancelledBy = who.UserID
		o.CancelReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.transition("order", order.ID, string(from), string(order.Status), who.UserID)
	e.publish(ctx, orderEvent(EventOrderCancelled, order, now))
	return order, nil
}

// GetRequest returns a request visible to its buyer or seller
func (e *Engagements) GetRequest(ctx context.Context, who identity.Identity, id string) (*HireRequest, error) {
	if err := requireIdentity(who); err != nil {
		return nil, err
	}
	r, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.BuyerID != who.UserID && r.SellerID != who.UserID {
		return nil, apperr.Forbidden("you are not a participant of this request")
	}
	return r, nil
}

// GetOrder returns an order visible to its buyer or seller
func (e *Engagements) GetOrder(ctx context.Context, who identity.Identity, id string) (*Order, error) {
	if err := requireIdentity(who); err != nil {
		return nil, err
	}
	o, err := e.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Participant(who.UserID) {
		return nil, apperr.Forbidden("you are not a participant of this order")
	}
	return o, nil
}

// ListRequests returns the caller's requests: sent ones for buyers, received
// ones for sellers.
func (e *Engagements) ListRequests(ctx context.Context, who identity.Identity, status RequestStatus) ([]HireRequest, error) {
	if err := requireIdentity(who); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, apperr.InvalidField("status", fmt.Sprintf("unknown request status %q", status))
	}
	f := RequestFilter{Status: status}
	if who.IsSeller() {
		f.SellerID = who.UserID
	} else {
		f.BuyerID = who.UserID
	}
	return e.store.ListRequests(ctx, f)
}

// ListOrders returns the caller's orders for their role
func (e *Engagements) ListOrders(ctx context.Context, who identity.Identity, status OrderStatus) ([]Order, error) {
	if err := requireIdentity(who); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, apperr.InvalidField("status", fmt.Sprintf("unknown order status %q", status))
	}
	f := OrderFilter{Status: status}
	if who.IsSeller() {
		f.SellerID = who.UserID
	} else {
		f.BuyerID = who.UserID
	}
	return e.store.ListOrders(ctx, f)
}

func (e *Engagements) mutateOrder(ctx context.Context, id string, fn func(*Order) error) (*Order, OrderStatus, error) {
	var from OrderStatus
	o, err := e.store.MutateOrder(ctx, id, func(o *Order) error {
		from = o.Status
		return fn(o)
	})
	return o, from, err
}

func (e *Engagements) stale(r *HireRequest, now time.Time) bool {
	return r.Status == RequestPending && now.Sub(r.RequestedAt) > e.sla
}

// expireIfStale moves a pending request past the SLA to expired. It reports
// whether this call performed the transition.
func (e *Engagements) expireIfStale(ctx context.Context, id string, now time.Time) (bool, error) {
	expired := false
	req, _, err := e.store.MutateRequest(ctx, id, func(r *HireRequest) (*Order, error) {
		if !e.stale(r, now) {
			return nil, ErrNoChange
		}
		r.Status = RequestExpired
		expired = true
		return nil, nil
	})
	if err != nil {
		return false, fmt.Errorf("expire request %s: %w", id, err)
	}
	if expired {
		e.transition("hire_request", req.ID, string(RequestPending), string(RequestExpired), "system")
		e.publish(ctx, requestEvent(EventRequestExpired, req, now))
	}
	return expired, nil
}

// ExpireStale expires every request still pending longer than the SLA as of
// now and returns how many were moved.
func (e *Engagements) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-e.sla)
	ids, err := e.store.ListStaleRequests(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale requests: %w", err)
	}

	count := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		ok, err := e.expireIfStale(ctx, id, now)
		if err != nil {
			return count, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}
