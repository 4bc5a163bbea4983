package marketplace

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sudo-init-do/quickquid/internal/apperr"
	"github.com/sudo-init-do/quickquid/internal/identity"
)

// Reviews is the append-only ledger of order reviews.
type Reviews struct {
	*base
}

// SubmitReview records the buyer's rating of a completed order and folds it
// into the service's running average in the same commit.
func (rv *Reviews) SubmitReview(ctx context.Context, who identity.Identity, orderID string, rating int, comment string) (*Review, error) {
	if err := requireRole(who, identity.RoleBuyer); err != nil {
		return nil, err
	}
	if rating < 1 || rating > 5 {
		return nil, apperr.InvalidField("rating", "must be between 1 and 5")
	}
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > maxCommentLength {
		return nil, apperr.InvalidField("comment", fmt.Sprintf("must be at most %d characters", maxCommentLength))
	}

	order, err := rv.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != who.UserID {
		return nil, apperr.Forbidden("only the buyer of this order can review it")
	}
	if order.Status != OrderCompleted {
		return nil, apperr.ConflictState("only completed orders can be reviewed", string(order.Status))
	}

	review := &Review{
		ID:        uuid.NewString(),
		OrderID:   order.ID,
		ServiceID: order.ServiceID,
		SellerID:  order.SellerID,
		AuthorID:  who.UserID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: rv.now(),
	}
	svc, err := rv.store.AppendReview(ctx, review, func(s *Service) {
		s.ApplyRating(rating)
	})
	if err != nil {
		return nil, err
	}

	rv.log.Debug().
		Str("review_id", review.ID).
		Str("service_id", svc.ID).
		Int("rating", rating).
		Float64("rating_average", svc.RatingAverage).
		Int("rating_count", svc.RatingCount).
		Msg("review recorded")

	rv.invalidateCatalog(ctx)
	rv.publish(ctx, Event{
		Type:       EventReviewSubmitted,
		EntityID:   review.ID,
		BuyerID:    order.BuyerID,
		SellerID:   order.SellerID,
		OccurredAt: review.CreatedAt,
	})
	return review, nil
}

// GetOrderReview returns the review attached to an order, visible to both
// participants.
func (rv *Reviews) GetOrderReview(ctx context.Context, who identity.Identity, orderID string) (*Review, error) {
	if err := requireIdentity(who); err != nil {
		return nil, err
	}
	order, err := rv.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Participant(who.UserID) {
		return nil, apperr.Forbidden("you are not a participant of this order")
	}
	return rv.store.GetReviewByOrder(ctx, orderID)
}

// ServiceReviews is a page of reviews with the service's rating summary
type ServiceReviews struct {
	Summary RatingSummary `json:"summary"`
	Reviews Page[Review]  `json:"reviews"`
}

// ListServiceReviews returns a service's reviews newest first. Reviews stay
// readable after a listing is paused or removed.
func (rv *Reviews) ListServiceReviews(ctx context.Context, serviceID string, page, pageSize int) (*ServiceReviews, error) {
	page, pageSize, err := rv.normalizePage(page, pageSize)
	if err != nil {
		return nil, err
	}
	svc, err := rv.store.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	reviews, err := rv.store.ListReviewsByService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	out := &ServiceReviews{
		Summary: summarize(svc.ID, reviews),
		Reviews: Paginate(reviews, page, pageSize),
	}
	// the stored running mean is authoritative
	out.Summary.AverageRating = svc.RatingAverage
	return out, nil
}

// SellerReviews is a page of reviews across all of a seller's services
type SellerReviews struct {
	SellerID string        `json:"seller_id"`
	Summary  RatingSummary `json:"summary"`
	Reviews  Page[Review]  `json:"reviews"`
}

// ListSellerReviews returns every review left for sellerID, newest first
func (rv *Reviews) ListSellerReviews(ctx context.Context, sellerID string, page, pageSize int) (*SellerReviews, error) {
	page, pageSize, err := rv.normalizePage(page, pageSize)
	if err != nil {
		return nil, err
	}
	reviews, err := rv.store.ListReviewsBySeller(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("list seller reviews: %w", err)
	}
	return &SellerReviews{
		SellerID: sellerID,
		Summary:  summarize("", reviews),
		Reviews:  Paginate(reviews, page, pageSize),
	}, nil
}

func summarize(serviceID string, reviews []Review) RatingSummary {
	s := RatingSummary{ServiceID: serviceID, TotalReviews: len(reviews)}
	var sum int
	for _, r := range reviews {
		sum += r.Rating
		switch r.Rating {
		case 5:
			s.RatingCounts.FiveStar++
		case 4:
			s.RatingCounts.FourStar++
		case 3:
			s.RatingCounts.ThreeStar++
		case 2:
			s.RatingCounts.TwoStar++
		case 1:
			s.RatingCounts.OneStar++
		}
	}
	if len(reviews) > 0 {
		s.AverageRating = float64(sum) / float64(len(reviews))
	}
	return s
}
