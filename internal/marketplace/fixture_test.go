package marketplace_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/quickquid/internal/identity"
	"github.com/sudo-init-do/quickquid/internal/marketplace"
	"github.com/sudo-init-do/quickquid/internal/storage/memory"
)

var (
	seller  = identity.Identity{UserID: "seller-1", Role: identity.RoleSeller, Verified: true}
	seller2 = identity.Identity{UserID: "seller-2", Role: identity.RoleSeller, Verified: true}
	buyer   = identity.Identity{UserID: "buyer-1", Role: identity.RoleBuyer}
	buyer2  = identity.Identity{UserID: "buyer-2", Role: identity.RoleBuyer}
)

// testingT is satisfied by both *testing.T and *rapid.T
type testingT interface {
	require.TestingT
	Helper()
}

type recorder struct {
	mu     sync.Mutex
	events []marketplace.Event
}

func (r *recorder) Publish(_ context.Context, ev marketplace.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) all() []marketplace.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]marketplace.Event(nil), r.events...)
}

func (r *recorder) types() []marketplace.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]marketplace.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	*marketplace.Marketplace
	store  *memory.Store
	events *recorder
	clock  *clock
	ctx    context.Context
}

func newFixture(t testingT) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.New(),
		events: &recorder{},
		clock:  &clock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
		ctx:    context.Background(),
	}
	f.Marketplace = marketplace.New(f.store, marketplace.Options{
		Notifier:   f.events,
		Clock:      f.clock.Now,
		RequestSLA: 72 * time.Hour,
	})
	return f
}

// listService creates and activates a service owned by who
func (f *fixture) listService(t testingT, who identity.Identity, title, category string, price int64) *marketplace.Service {
	t.Helper()
	svc, err := f.Services.Create(f.ctx, who, marketplace.ServiceInput{
		Title:        title,
		Category:     category,
		BasePrice:    price,
		DeliveryDays: 5,
	})
	require.NoError(t, err)
	svc, err = f.Services.Activate(f.ctx, who, svc.ID)
	require.NoError(t, err)
	return svc
}

// completedOrder walks a fresh request through to a completed order
func (f *fixture) completedOrder(t testingT, svc *marketplace.Service, who identity.Identity, budget int64) *marketplace.Order {
	t.Helper()
	req, err := f.Engagements.SubmitRequest(f.ctx, who, svc.ID, "please", budget)
	require.NoError(t, err)
	owner := seller
	if svc.OwnerID == seller2.UserID {
		owner = seller2
	}
	_, order, err := f.Engagements.RespondToRequest(f.ctx, owner, req.ID, marketplace.DecisionAccept, "")
	require.NoError(t, err)
	_, err = f.Engagements.MarkDelivered(f.ctx, owner, order.ID)
	require.NoError(t, err)
	order, err = f.Engagements.MarkCompleted(f.ctx, who, order.ID)
	require.NoError(t, err)
	return order
}
