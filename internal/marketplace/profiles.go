package marketplace

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sudo-init-do/quickquid/internal/apperr"
	"github.com/sudo-init-do/quickquid/internal/identity"
)

// Profiles maintains the public seller names the catalog searches on.
type Profiles struct {
	*base
}

// UpdateDisplayName sets the caller's public display name
func (p *Profiles) UpdateDisplayName(ctx context.Context, who identity.Identity, name string) (*Profile, error) {
	if err := requireIdentity(who); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.InvalidField("display_name", "is required")
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		return nil, apperr.InvalidField("display_name", fmt.Sprintf("must be at most %d characters", maxDisplayNameLength))
	}
	prof := Profile{UserID: who.UserID, DisplayName: name, UpdatedAt: p.now()}
	if err := p.store.UpsertProfile(ctx, prof); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	p.invalidateCatalog(ctx)
	return &prof, nil
}

// Get returns a user's public profile
func (p *Profiles) Get(ctx context.Context, userID string) (*Profile, error) {
	return p.store.GetProfile(ctx, userID)
}
