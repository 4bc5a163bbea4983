// Package marketplace implements the catalog, the hire-request and order
// lifecycle, and the review ledger on top of a pluggable Store.
package marketplace

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sudo-init-do/quickquid/internal/apperr"
	"github.com/sudo-init-do/quickquid/internal/config"
	"github.com/sudo-init-do/quickquid/internal/identity"
	"github.com/sudo-init-do/quickquid/internal/logging"
	"github.com/sudo-init-do/quickquid/internal/monitoring"
)

const (
	DefaultRequestSLA     = 72 * time.Hour
	DefaultPageSize       = 20
	MaxPageSize           = 100
	maxTitleLength        = 120
	maxMessageLength      = 2000
	maxCommentLength      = 1000
	maxCancelReasonLength = 500
	maxDisplayNameLength  = 80
	maxDescriptionLength  = 5000
)

// Options configures a Marketplace. Zero values fall back to defaults.
type Options struct {
	Notifier        Notifier
	Cache           QueryCache
	Clock           func() time.Time
	RequestSLA      time.Duration
	Categories      []string
	DefaultPageSize int
	MaxPageSize     int
	Logger          *zerolog.Logger
}

// Marketplace bundles the components that share one Store
type Marketplace struct {
	Catalog     *Catalog
	Engagements *Engagements
	Reviews     *Reviews
	Services    *Services
	Profiles    *Profiles
	Dashboard   *Dashboard
}

// New wires every component against store
func New(store Store, opts Options) *Marketplace {
	b := newBase(store, opts)
	return &Marketplace{
		Catalog:     &Catalog{base: b},
		Engagements: &Engagements{base: b},
		Reviews:     &Reviews{base: b},
		Services:    &Services{base: b},
		Profiles:    &Profiles{base: b},
		Dashboard:   &Dashboard{base: b},
	}
}

type base struct {
	store        Store
	notifier     Notifier
	cache        QueryCache
	now          func() time.Time
	sla          time.Duration
	categories   map[string]bool
	categoryList []string
	pageSize     int
	maxPageSize  int
	log          zerolog.Logger
}

func newBase(store Store, opts Options) *base {
	b := &base{
		store:       store,
		notifier:    opts.Notifier,
		cache:       opts.Cache,
		now:         opts.Clock,
		sla:         opts.RequestSLA,
		pageSize:    opts.DefaultPageSize,
		maxPageSize: opts.MaxPageSize,
		categories:  make(map[string]bool),
	}
	if b.notifier == nil {
		b.notifier = nopNotifier{}
	}
	if b.now == nil {
		b.now = func() time.Time { return time.Now().UTC() }
	}
	if b.sla <= 0 {
		b.sla = DefaultRequestSLA
	}
	if b.pageSize <= 0 {
		b.pageSize = DefaultPageSize
	}
	if b.maxPageSize <= 0 {
		b.maxPageSize = MaxPageSize
	}
	if b.pageSize > b.maxPageSize {
		b.pageSize = b.maxPageSize
	}
	cats := opts.Categories
	if len(cats) == 0 {
		cats = config.DefaultCategories
	}
	for _, c := range cats {
		if !b.categories[c] {
			b.categories[c] = true
			b.categoryList = append(b.categoryList, c)
		}
	}
	if opts.Logger != nil {
		b.log = opts.Logger.With().Str("component", "marketplace").Logger()
	} else {
		b.log = zerolog.Nop()
	}
	return b
}

// publish hands ev to the notifier. Delivery problems are logged, never returned.
func (b *base) publish(ctx context.Context, ev Event) {
	if err := b.notifier.Publish(ctx, ev); err != nil {
		monitoring.RecordNotification(string(ev.Type), "error")
		b.log.Warn().Err(err).
			Str("event", string(ev.Type)).
			Str("entity_id", ev.EntityID).
			Msg("failed to publish event")
		return
	}
	monitoring.RecordNotification(string(ev.Type), "ok")
}

func (b *base) invalidateCatalog(ctx context.Context) {
	if b.cache != nil {
		b.cache.Invalidate(ctx)
	}
}

func (b *base) transition(entity, id, from, to, actor string) {
	monitoring.RecordTransition(entity, to)
	logging.LogTransition(b.log, entity, id, from, to, actor)
}

func requireIdentity(who identity.Identity) error {
	if !who.Valid() {
		return apperr.Forbidden("a signed-in user is required")
	}
	return nil
}

func requireRole(who identity.Identity, role identity.Role) error {
	if err := requireIdentity(who); err != nil {
		return err
	}
	if who.Role != role {
		return apperr.Forbidden("this action requires the " + string(role) + " role")
	}
	return nil
}
