package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/quickquid/internal/apperr"
	"github.com/sudo-init-do/quickquid/internal/config"
	"github.com/sudo-init-do/quickquid/internal/identity"
	"github.com/sudo-init-do/quickquid/internal/marketplace"
	"github.com/sudo-init-do/quickquid/internal/middleware"
	"github.com/sudo-init-do/quickquid/internal/storage/memory"
)

type testServer struct {
	t      *testing.T
	srv    *Server
	seller string
	buyer  string
}

func newTestServer(t *testing.T, ready func(context.Context) error) *testServer {
	t.Helper()
	auth := middleware.NewJWTAuthenticator("test-secret", "quickquid")
	cfg := &config.Config{
		Server:     config.ServerConfig{Name: "quickquid"},
		Monitoring: config.MonitoringConfig{PrometheusEnabled: true},
	}
	srv := New(cfg, Deps{
		Marketplace: marketplace.New(memory.New(), marketplace.Options{}),
		Auth:        auth,
		Ready:       ready,
		Logger:      zerolog.Nop(),
	})

	sellerTok, err := auth.Issue(identity.Identity{UserID: "seller-1", Role: identity.RoleSeller, Verified: true}, time.Hour)
	require.NoError(t, err)
	buyerTok, err := auth.Issue(identity.Identity{UserID: "buyer-1", Role: identity.RoleBuyer}, time.Hour)
	require.NoError(t, err)
	return &testServer{t: t, srv: srv, seller: sellerTok, buyer: buyerTok}
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) listedService(title string, price int64) marketplace.Service {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/marketplace/services", ts.seller, echoMap{
		"title": title, "category": "design", "base_price": price, "delivery_days": 3,
	})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	svc := decode[marketplace.Service](ts.t, rec)

	rec = ts.do(http.MethodPost, "/marketplace/services/"+svc.ID+"/activate", ts.seller, nil)
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[marketplace.Service](ts.t, rec)
}

type echoMap = map[string]any

func TestHireLifecycle_OverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPatch, "/user/profile", ts.seller, echoMap{"display_name": "Ada Studio"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	svc := ts.listedService("Logo design", 5000)

	rec = ts.do(http.MethodGet, "/marketplace/services?q=ada&sort=price-asc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[marketplace.QueryResult](t, rec)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "Ada Studio", page.Items[0].SellerName)

	rec = ts.do(http.MethodPost, "/marketplace/requests", ts.buyer, echoMap{
		"service_id": svc.ID, "message": "need a logo", "proposed_budget": 6000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	hr := decode[marketplace.HireRequest](t, rec)
	assert.Equal(t, marketplace.RequestPending, hr.Status)

	rec = ts.do(http.MethodPost, "/marketplace/requests/"+hr.ID+"/respond", ts.seller, echoMap{"decision": "accept"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	responded := decode[struct {
		Request marketplace.HireRequest `json:"request"`
		Order   *marketplace.Order      `json:"order"`
	}](t, rec)
	require.NotNil(t, responded.Order)
	assert.Equal(t, marketplace.RequestAccepted, responded.Request.Status)
	assert.Equal(t, int64(6000), responded.Order.AgreedPrice)
	orderID := responded.Order.ID

	rec = ts.do(http.MethodPost, "/marketplace/orders/"+orderID+"/deliver", ts.seller, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(http.MethodPost, "/marketplace/orders/"+orderID+"/complete", ts.buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, "/marketplace/orders/"+orderID+"/review", ts.buyer, echoMap{"rating": 4, "comment": "solid"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/marketplace/services/"+svc.ID+"/reviews", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reviews := decode[marketplace.ServiceReviews](t, rec)
	assert.Equal(t, 1, reviews.Summary.TotalReviews)
	assert.InDelta(t, 4.0, reviews.Summary.AverageRating, 1e-9)

	rec = ts.do(http.MethodGet, "/sellers/seller-1/reviews", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[marketplace.SellerReviews](t, rec).Summary.TotalReviews)

	rec = ts.do(http.MethodGet, "/sellers/me/stats", ts.seller, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[marketplace.SellerStats](t, rec)
	assert.Equal(t, 1, stats.CompletedOrders)
	assert.Equal(t, int64(6000), stats.TotalEarnings)

	rec = ts.do(http.MethodGet, "/marketplace/orders/me", ts.buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	orders := decode[struct {
		Orders []marketplace.Order `json:"orders"`
	}](t, rec)
	require.Len(t, orders.Orders, 1)
	assert.Equal(t, marketplace.OrderCompleted, orders.Orders[0].Status)
}

func TestErrorResponses(t *testing.T) {
	ts := newTestServer(t, nil)
	svc := ts.listedService("Logo design", 5000)

	tests := []struct {
		name    string
		method  string
		path    string
		token   string
		body    any
		status  int
		code    apperr.Code
		details map[string]string
	}{
		{
			name: "missing token", method: http.MethodGet, path: "/marketplace/orders/me",
			status: http.StatusUnauthorized, code: apperr.CodeUnauthorized,
		},
		{
			name: "buyer cannot list services", method: http.MethodPost, path: "/marketplace/services", token: ts.buyer,
			body:   echoMap{"title": "x", "category": "design", "base_price": 1, "delivery_days": 1},
			status: http.StatusForbidden, code: apperr.CodeForbidden,
		},
		{
			name: "rating out of range", method: http.MethodPost, path: "/marketplace/orders/o-1/review", token: ts.buyer,
			body:   echoMap{"rating": 6},
			status: http.StatusBadRequest, code: apperr.CodeValidation,
			details: map[string]string{"rating": "must be at most 5"},
		},
		{
			name: "bad decision", method: http.MethodPost, path: "/marketplace/requests/r-1/respond", token: ts.seller,
			body:   echoMap{"decision": "maybe"},
			status: http.StatusBadRequest, code: apperr.CodeValidation,
			details: map[string]string{"decision": "must be one of: accept decline"},
		},
		{
			name: "unknown sort", method: http.MethodGet, path: "/marketplace/services?sort=cheapest",
			status: http.StatusBadRequest, code: apperr.CodeValidation,
		},
		{
			name: "non-numeric page", method: http.MethodGet, path: "/marketplace/services?page=two",
			status: http.StatusBadRequest, code: apperr.CodeValidation,
			details: map[string]string{"page": "must be an integer"},
		},
		{
			name: "unknown order", method: http.MethodGet, path: "/marketplace/orders/nope", token: ts.buyer,
			status: http.StatusNotFound, code: apperr.CodeNotFound,
			details: map[string]string{"resource": "order", "id": "nope"},
		},
		{
			name: "budget must be positive", method: http.MethodPost, path: "/marketplace/requests", token: ts.buyer,
			body:   echoMap{"service_id": svc.ID, "proposed_budget": 0},
			status: http.StatusBadRequest, code: apperr.CodeValidation,
		},
		{
			name: "unknown route", method: http.MethodGet, path: "/nowhere",
			status: http.StatusNotFound, code: apperr.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(tt.method, tt.path, tt.token, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			var resp struct {
				Error struct {
					Code    apperr.Code       `json:"code"`
					Message string            `json:"message"`
					Details map[string]string `json:"details"`
				} `json:"error"`
				RequestID string `json:"request_id"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
			assert.NotEmpty(t, resp.RequestID)
			for k, v := range tt.details {
				assert.Equal(t, v, resp.Error.Details[k], k)
			}
		})
	}
}

func TestConflictCarriesCurrentStatus(t *testing.T) {
	ts := newTestServer(t, nil)
	svc := ts.listedService("Logo design", 5000)

	rec := ts.do(http.MethodPost, "/marketplace/requests", ts.buyer, echoMap{"service_id": svc.ID, "proposed_budget": 5000})
	require.Equal(t, http.StatusCreated, rec.Code)
	hr := decode[marketplace.HireRequest](t, rec)
	rec = ts.do(http.MethodPost, "/marketplace/requests/"+hr.ID+"/respond", ts.seller, echoMap{"decision": "accept"})
	require.Equal(t, http.StatusOK, rec.Code)
	order := decode[struct {
		Order marketplace.Order `json:"order"`
	}](t, rec).Order

	rec = ts.do(http.MethodPost, "/marketplace/orders/"+order.ID+"/complete", ts.buyer, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"current_status":"in_progress"`)

	rec = ts.do(http.MethodPost, "/marketplace/orders/"+order.ID+"/cancel", ts.buyer, echoMap{"reason": "changed my mind"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, marketplace.OrderCancelled, decode[marketplace.Order](t, rec).Status)
}

func TestDraftVisibleOnlyToOwner(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodPost, "/marketplace/services", ts.seller, echoMap{
		"title": "Draft", "category": "design", "base_price": 100, "delivery_days": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	svc := decode[marketplace.Service](t, rec)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/marketplace/services/"+svc.ID, "", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/marketplace/services/"+svc.ID, ts.seller, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/marketplace/services/"+svc.ID, "garbage", nil).Code)
}

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(t, nil)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/ready", "", nil).Code)

	rec := ts.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")

	down := newTestServer(t, func(context.Context) error { return errors.New("connection refused") })
	rec = down.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestPublicListings_HugePageNumber(t *testing.T) {
	ts := newTestServer(t, nil)
	svc := ts.listedService("Logo", 5000)

	for _, path := range []string{
		"/marketplace/services?page=92233720368547758",
		"/marketplace/services/" + svc.ID + "/reviews?page=92233720368547758",
		"/sellers/seller-1/reviews?page=92233720368547758",
	} {
		rec := ts.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
