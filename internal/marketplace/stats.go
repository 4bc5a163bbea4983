package marketplace

import (
	"context"
	"fmt"

	"github.com/sudo-init-do/quickquid/internal/identity"
)

// Dashboard derives seller statistics from stored state.
type Dashboard struct {
	*base
}

// Stats returns the caller's seller dashboard numbers
func (d *Dashboard) Stats(ctx context.Context, who identity.Identity) (*SellerStats, error) {
	if err := requireRole(who, identity.RoleSeller); err != nil {
		return nil, err
	}

	services, err := d.store.ListServicesByOwner(ctx, who.UserID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	orders, err := d.store.ListOrders(ctx, OrderFilter{SellerID: who.UserID})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	pending, err := d.store.ListRequests(ctx, RequestFilter{SellerID: who.UserID, Status: RequestPending})
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	reviews, err := d.store.ListReviewsBySeller(ctx, who.UserID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	stats := &SellerStats{}
	for _, svc := range services {
		if svc.Listed() {
			stats.ActiveServices++
		}
	}
	for _, o := range orders {
		switch o.Status {
		case OrderInProgress, OrderDelivered:
			stats.ActiveOrders++
		case OrderCompleted:
			stats.CompletedOrders++
			stats.TotalEarnings += o.AgreedPrice
		case OrderCancelled:
			stats.CancelledOrders++
		}
	}
	now := d.now()
	for i := range pending {
		if now.Sub(pending[i].RequestedAt) <= d.sla {
			stats.PendingRequests++
		}
	}
	if len(reviews) > 0 {
		var sum int
		for _, r := range reviews {
			sum += r.Rating
		}
		stats.ReviewCount = len(reviews)
		stats.AverageRating = float64(sum) / float64(len(reviews))
	}
	if closed := stats.CompletedOrders + stats.CancelledOrders; closed > 0 {
		stats.CompletionRate = float64(stats.CompletedOrders) / float64(closed) * 100
	}
	return stats, nil
}
