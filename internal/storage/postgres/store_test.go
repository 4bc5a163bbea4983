package postgres_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/quickquid/internal/apperr"
	"github.com/sudo-init-do/quickquid/internal/db"
	"github.com/sudo-init-do/quickquid/internal/identity"
	"github.com/sudo-init-do/quickquid/internal/marketplace"
	"github.com/sudo-init-do/quickquid/internal/storage/postgres"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		fmt.Println("TEST_DATABASE_URL not set; postgres store tests will be skipped")
		os.Exit(m.Run())
	}

	if err := db.Migrate(dbURL, ""); err != nil {
		fmt.Printf("Warning: failed to migrate test database: %v\n", err)
		os.Exit(m.Run())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err == nil {
		err = pool.Ping(ctx)
	}
	if err != nil {
		fmt.Printf("Warning: failed to connect to test database: %v\n", err)
	} else {
		testPool = pool
	}

	code := m.Run()
	if testPool != nil {
		testPool.Close()
	}
	os.Exit(code)
}

func newMarketplace(t *testing.T) (*marketplace.Marketplace, *postgres.Store) {
	t.Helper()
	if testPool == nil {
		t.Skip("Test database not available")
	}
	store := postgres.New(testPool)
	return marketplace.New(store, marketplace.Options{}), store
}

// users returns fresh identities so tests never collide on shared rows
func users() (seller, buyer identity.Identity) {
	seller = identity.Identity{UserID: "seller-" + uuid.NewString(), Role: identity.RoleSeller, Verified: true}
	buyer = identity.Identity{UserID: "buyer-" + uuid.NewString(), Role: identity.RoleBuyer}
	return seller, buyer
}

func listService(t *testing.T, m *marketplace.Marketplace, who identity.Identity, price int64) *marketplace.Service {
	t.Helper()
	ctx := context.Background()
	svc, err := m.Services.Create(ctx, who, marketplace.ServiceInput{
		Title: "Logo design", Category: "design", BasePrice: price, DeliveryDays: 3,
	})
	require.NoError(t, err)
	svc, err = m.Services.Activate(ctx, who, svc.ID)
	require.NoError(t, err)
	return svc
}

func TestPostgres_Lifecycle(t *testing.T) {
	m, store := newMarketplace(t)
	ctx := context.Background()
	seller, buyer := users()
	svc := listService(t, m, seller, 5000)

	req, err := m.Engagements.SubmitRequest(ctx, buyer, svc.ID, "Need a logo", 6000)
	require.NoError(t, err)

	_, err = m.Engagements.SubmitRequest(ctx, buyer, svc.ID, "again", 6000)
	assert.True(t, apperr.IsConflict(err), "partial unique index rejects a second pending request")

	req, order, err := m.Engagements.RespondToRequest(ctx, seller, req.ID, marketplace.DecisionAccept, "")
	require.NoError(t, err)
	assert.Equal(t, marketplace.RequestAccepted, req.Status)
	assert.Equal(t, 2, req.Version)

	stored, err := store.GetOrderByRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)
	assert.Equal(t, int64(6000), stored.AgreedPrice)

	_, err = m.Engagements.MarkCompleted(ctx, buyer, order.ID)
	assert.True(t, apperr.IsConflict(err))

	_, err = m.Engagements.MarkDelivered(ctx, seller, order.ID)
	require.NoError(t, err)
	_, err = m.Engagements.MarkCompleted(ctx, buyer, order.ID)
	require.NoError(t, err)

	_, err = m.Reviews.SubmitReview(ctx, buyer, order.ID, 5, "great")
	require.NoError(t, err)
	_, err = m.Reviews.SubmitReview(ctx, buyer, order.ID, 4, "again")
	assert.True(t, apperr.IsConflict(err))

	got, err := store.GetService(ctx, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RatingCount)
	assert.InDelta(t, 5.0, got.RatingAverage, 1e-9)
}

func TestPostgres_ConcurrentAcceptCreatesOneOrder(t *testing.T) {
	m, store := newMarketplace(t)
	ctx := context.Background()
	seller, buyer := users()
	svc := listService(t, m, seller, 5000)

	req, err := m.Engagements.SubmitRequest(ctx, buyer, svc.ID, "", 100)
	require.NoError(t, err)

	var declined atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := marketplace.DecisionAccept
			if i%2 == 1 {
				d = marketplace.DecisionDecline
			}
			if _, _, err := m.Engagements.RespondToRequest(ctx, seller, req.ID, d, ""); err == nil && d == marketplace.DecisionDecline {
				declined.Add(1)
			}
		}(i)
	}
	wg.Wait()

	final, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	orders, err := store.ListOrders(ctx, marketplace.OrderFilter{BuyerID: buyer.UserID})
	require.NoError(t, err)

	switch final.Status {
	case marketplace.RequestAccepted:
		assert.Len(t, orders, 1)
		assert.Zero(t, declined.Load())
	case marketplace.RequestDeclined:
		assert.Empty(t, orders)
		assert.Equal(t, int32(1), declined.Load())
	default:
		t.Fatalf("unexpected status %s", final.Status)
	}
}

func TestPostgres_CatalogAndProfiles(t *testing.T) {
	m, _ := newMarketplace(t)
	ctx := context.Background()
	seller, _ := users()
	name := "Studio " + uuid.NewString()[:8]

	_, err := m.Profiles.UpdateDisplayName(ctx, seller, name)
	require.NoError(t, err)
	svc := listService(t, m, seller, 4200)

	res, err := m.Catalog.Query(ctx, marketplace.QueryParams{SearchText: name, PageSize: 100})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, svc.ID, res.Items[0].ID)
	assert.Equal(t, name, res.Items[0].SellerName)

	_, err = m.Services.Pause(ctx, seller, svc.ID)
	require.NoError(t, err)
	res, err = m.Catalog.Query(ctx, marketplace.QueryParams{SearchText: name})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}

func TestPostgres_ExpireStale(t *testing.T) {
	m, store := newMarketplace(t)
	ctx := context.Background()
	seller, buyer := users()
	svc := listService(t, m, seller, 5000)

	req, err := m.Engagements.SubmitRequest(ctx, buyer, svc.ID, "", 100)
	require.NoError(t, err)

	_, err = m.Engagements.ExpireStale(ctx, time.Now().Add(marketplace.DefaultRequestSLA+time.Hour))
	require.NoError(t, err)

	got, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, marketplace.RequestExpired, got.Status)
}

func TestPostgres_NotFound(t *testing.T) {
	_, store := newMarketplace(t)
	ctx := context.Background()

	_, err := store.GetService(ctx, uuid.NewString())
	assert.True(t, apperr.IsNotFound(err))
	_, err = store.GetOrder(ctx, uuid.NewString())
	assert.True(t, apperr.IsNotFound(err))
	_, _, err = store.MutateRequest(ctx, uuid.NewString(), func(*marketplace.HireRequest) (*marketplace.Order, error) {
		return nil, nil
	})
	assert.True(t, apperr.IsNotFound(err))
}
