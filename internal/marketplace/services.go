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

const maxServicesPerSeller = 50

// ServiceInput is the seller-editable part of a listing
type ServiceInput struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	BasePrice    int64  `json:"base_price"`
	DeliveryDays int    `json:"delivery_days"`
}

// ServicePatch updates only the fields that are set
type ServicePatch struct {
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	Category     *string `json:"category,omitempty"`
	BasePrice    *int64  `json:"base_price,omitempty"`
	DeliveryDays *int    `json:"delivery_days,omitempty"`
}

// Services manages a seller's listings.
type Services struct {
	*base
}

// Create lists a new service as a draft
func (s *Services) Create(ctx context.Context, who identity.Identity, in ServiceInput) (*Service, error) {
	if err := requireRole(who, identity.RoleSeller); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if err := s.validateInput(in); err != nil {
		return nil, err
	}

	existing, err := s.store.ListServicesByOwner(ctx, who.UserID)
	if err != nil {
		return nil, fmt.Errorf("count services: %w", err)
	}
	live := 0
	for _, svc := range existing {
		if svc.RemovedAt == nil {
			live++
		}
	}
	if live >= maxServicesPerSeller {
		return nil, apperr.Conflict(fmt.Sprintf("listing limit reached (%d services)", maxServicesPerSeller))
	}

	now := s.now()
	svc := &Service{
		ID:           uuid.NewString(),
		OwnerID:      who.UserID,
		Title:        in.Title,
		Description:  in.Description,
		Category:     in.Category,
		BasePrice:    in.BasePrice,
		DeliveryDays: in.DeliveryDays,
		Status:       ServiceDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateService(ctx, svc); err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	s.transition("service", svc.ID, "", string(svc.Status), who.UserID)
	return svc, nil
}

// Update edits listing details. Rating fields are never touched here.
func (s *Services) Update(ctx context.Context, who identity.Identity, id string, patch ServicePatch) (*Service, error) {
	if err := requireRole(who, identity.RoleSeller); err != nil {
		return nil, err
	}
	svc, err := s.mutate(ctx, who, id, func(svc *Service) error {
		if svc.RemovedAt != nil {
			return apperr.Conflict("service has been removed")
		}
		in := ServiceInput{
			Title:        svc.Title,
			Description:  svc.Description,
			Category:     svc.Category,
			BasePrice:    svc.BasePrice,
			DeliveryDays: svc.DeliveryDays,
		}
		if patch.Title != nil {
			in.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			in.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Category != nil {
			in.Category = strings.TrimSpace(*patch.Category)
		}
		if patch.BasePrice != nil {
			in.BasePrice = *patch.BasePrice
		}
		if patch.DeliveryDays != nil {
			in.DeliveryDays = *patch.DeliveryDays
		}
		if err := s.validateInput(in); err != nil {
			return err
		}
		svc.Title = in.Title
		svc.Description = in.Description
		svc.Category = in.Category
		svc.BasePrice = in.BasePrice
		svc.DeliveryDays = in.DeliveryDays
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	return svc, nil
}

// Activate publishes a listing. Only verified sellers can publish.
func (s *Services) Activate(ctx context.Context, who identity.Identity, id string) (*Service, error) {
	if err := requireRole(who, identity.RoleSeller); err != nil {
		return nil, err
	}
	if !who.Verified {
		return nil, apperr.Forbidden("only verified sellers can publish services")
	}
	return s.setStatus(ctx, who, id, ServiceActive)
}

// Pause hides a listing from the catalog without removing it
func (s *Services) Pause(ctx context.Context, who identity.Identity, id string) (*Service, error) {
	if err := requireRole(who, identity.RoleSeller); err != nil {
		return nil, err
	}
	return s.setStatus(ctx, who, id, ServicePaused)
}

// Remove soft-deletes a listing. Orders that reference it keep working.
func (s *Services) Remove(ctx context.Context, who identity.Identity, id string) (*Service, error) {
	if err := requireRole(who, identity.RoleSeller); err != nil {
		return nil, err
	}
	var from ServiceStatus
	svc, err := s.mutate(ctx, who, id, func(svc *Service) error {
		if svc.RemovedAt != nil {
			return apperr.Conflict("service has already been removed")
		}
		from = svc.Status
		now := s.now()
		svc.RemovedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.transition("service", svc.ID, string(from), "removed", who.UserID)
	s.invalidateCatalog(ctx)
	return svc, nil
}

// Get returns a listed service to anyone and any other service to its owner
func (s *Services) Get(ctx context.Context, who identity.Identity, id string) (*Service, error) {
	svc, err := s.store.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if !svc.Listed() && svc.OwnerID != who.UserID {
		return nil, apperr.NotFound("service", id)
	}
	return svc, nil
}

// ListMine returns the caller's non-removed services, newest first
func (s *Services) ListMine(ctx context.Context, who identity.Identity) ([]Service, error) {
	if err := requireRole(who, identity.RoleSeller); err != nil {
		return nil, err
	}
	all, err := s.store.ListServicesByOwner(ctx, who.UserID)
	if err != nil {
		return nil, err
	}
	out := make([]Service, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].RemovedAt == nil {
			out = append(out, all[i])
		}
	}
	return out, nil
}

func (s *Services) setStatus(ctx context.Context, who identity.Identity, id string, to ServiceStatus) (*Service, error) {
	var from ServiceStatus
	svc, err := s.mutate(ctx, who, id, func(svc *Service) error {
		if svc.RemovedAt != nil {
			return apperr.Conflict("service has been removed")
		}
		from = svc.Status
		if svc.Status == to {
			return ErrNoChange
		}
		svc.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}
	if from != to {
		s.transition("service", svc.ID, string(from), string(to), who.UserID)
		s.invalidateCatalog(ctx)
	}
	return svc, nil
}

func (s *Services) mutate(ctx context.Context, who identity.Identity, id string, fn func(*Service) error) (*Service, error) {
	return s.store.UpdateService(ctx, id, func(svc *Service) error {
		if svc.OwnerID != who.UserID {
			return apperr.Forbidden("only the owner can change this service")
		}
		if err := fn(svc); err != nil {
			return err
		}
		svc.UpdatedAt = s.now()
		return nil
	})
}

func (s *Services) validateInput(in ServiceInput) error {
	switch {
	case in.Title == "":
		return apperr.InvalidField("title", "is required")
	case utf8.RuneCountInString(in.Title) > maxTitleLength:
		return apperr.InvalidField("title", fmt.Sprintf("must be at most %d characters", maxTitleLength))
	case utf8.RuneCountInString(in.Description) > maxDescriptionLength:
		return apperr.InvalidField("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLength))
	case !s.categories[in.Category]:
		return apperr.InvalidField("category", fmt.Sprintf("unknown category %q", in.Category))
	case in.BasePrice <= 0:
		return apperr.InvalidField("base_price", "must be greater than zero")
	case in.DeliveryDays <= 0:
		return apperr.InvalidField("delivery_days", "must be greater than zero")
	}
	return nil
}
