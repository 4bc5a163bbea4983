package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/quickquid/internal/identity"
	"github.com/sudo-init-do/quickquid/internal/marketplace"
	"github.com/sudo-init-do/quickquid/internal/storage/memory"
)

func TestExpire_PublishesExpiredEvents(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seller := identity.Identity{UserID: "seller-1", Role: identity.RoleSeller, Verified: true}
	buyer := identity.Identity{UserID: "buyer-1", Role: identity.RoleBuyer}
	submitted := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	mp := marketplace.New(store, marketplace.Options{
		Clock:      func() time.Time { return submitted },
		RequestSLA: 72 * time.Hour,
	})
	svc, err := mp.Services.Create(ctx, seller, marketplace.ServiceInput{
		Title: "Logo", Category: "design", BasePrice: 5000, DeliveryDays: 3,
	})
	require.NoError(t, err)
	_, err = mp.Services.Activate(ctx, seller, svc.ID)
	require.NoError(t, err)
	req, err := mp.Engagements.SubmitRequest(ctx, buyer, svc.ID, "logo please", 5000)
	require.NoError(t, err)

	var events []marketplace.Event
	notifier := marketplace.NotifierFunc(func(_ context.Context, ev marketplace.Event) error {
		events = append(events, ev)
		return nil
	})

	n, err := expire(ctx, store, notifier, 72*time.Hour, submitted.Add(73*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, events, 1)
	assert.Equal(t, marketplace.EventRequestExpired, events[0].Type)
	assert.Equal(t, req.ID, events[0].EntityID)
	assert.Equal(t, buyer.UserID, events[0].BuyerID)
	assert.Equal(t, seller.UserID, events[0].SellerID)

	stored, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, marketplace.RequestExpired, stored.Status)
}
