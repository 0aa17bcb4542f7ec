package pricealert

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/price-alert/internal/models"
)

type AuthMock struct{ mock.Mock }

func (m *AuthMock) Register(ctx context.Context, username, password string, telegramID *int64) (string, error) {
	args := m.Called(ctx, username, password, telegramID)
	return args.String(0), args.Error(1)
}

func (m *AuthMock) Login(ctx context.Context, username, password string) (string, error) {
	args := m.Called(ctx, username, password)
	return args.String(0), args.Error(1)
}

func (m *AuthMock) ValidateToken(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

type SubscriptionsMock struct{ mock.Mock }

func (m *SubscriptionsMock) Create(ctx context.Context, userID int64, req models.DummySubscription) (*models.Subscription, error) {
	args := m.Called(ctx, userID, req)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func (m *SubscriptionsMock) List(ctx context.Context, userID int64) ([]models.Subscription, error) {
	args := m.Called(ctx, userID)
	subs, _ := args.Get(0).([]models.Subscription)
	return subs, args.Error(1)
}

func (m *SubscriptionsMock) Remove(ctx context.Context, userID, id int64) error {
	return m.Called(ctx, userID, id).Error(0)
}

type pricesStub map[string]string

func (p pricesStub) GetPrice(_ context.Context, symbol string) (models.PriceQuote, bool, error) {
	v, ok := p[symbol]
	return models.PriceQuote{Symbol: symbol, Price: v}, ok, nil
}

type dbStub struct{ err error }

func (d dbStub) CheckDatabaseReady(context.Context) error { return d.err }

func newTestRouter(t *testing.T, authSvc *AuthMock, subs *SubscriptionsMock) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	RegisterRoutes(r, slog.New(slog.NewTextHandler(io.Discard, nil)), Deps{
		Auth:          authSvc,
		Subscriptions: subs,
		Prices:        pricesStub{"BTCUSDT": "29000"},
		DB:            dbStub{},
		EngineState:   func() string { return "idle" },
		Limiter:       rate.NewLimiter(rate.Inf, 1),
	})
	return r
}

func TestRoutes(t *testing.T) {
	authSvc := new(AuthMock)
	subs := new(SubscriptionsMock)
	router := newTestRouter(t, authSvc, subs)

	authSvc.On("Register", mock.Anything, "alice", "secret123", (*int64)(nil)).Return("tok", nil)
	authSvc.On("Login", mock.Anything, "alice", "secret123").Return("tok", nil)
	authSvc.On("ValidateToken", mock.Anything, "tok").Return(&models.User{ID: 1, Username: "alice"}, nil)
	authSvc.On("ValidateToken", mock.Anything, "bad").Return(nil, errors.New("expired"))
	subs.On("List", mock.Anything, int64(1)).Return([]models.Subscription{{ID: 3, UserID: 1, Symbol: "BTCUSDT"}}, nil)
	subs.On("Remove", mock.Anything, int64(1), int64(3)).Return(nil)
	subs.On("Create", mock.Anything, int64(1), models.DummySubscription{Symbol: "ETHUSDT"}).
		Return(&models.Subscription{ID: 4, UserID: 1, Symbol: "ETHUSDT"}, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		token      string
		wantStatus int
		wantBody   string
	}{
		{"register", http.MethodPost, "/api/v1/register", `{"username":"alice","password":"secret123"}`, "", http.StatusOK, `"access_token":"tok"`},
		{"token", http.MethodPost, "/api/v1/token", `{"username":"alice","password":"secret123"}`, "", http.StatusOK, `"token_type":"bearer"`},
		{"price is public", http.MethodGet, "/api/v1/prices/BTCUSDT", "", "", http.StatusOK, `"price":"29000"`},
		{"subscriptions need token", http.MethodGet, "/api/v1/subscriptions", "", "", http.StatusUnauthorized, `missing or invalid authorization header`},
		{"expired token", http.MethodGet, "/api/v1/subscriptions", "", "bad", http.StatusUnauthorized, `invalid or expired token`},
		{"list", http.MethodGet, "/api/v1/subscriptions", "", "tok", http.StatusOK, `"symbol":"BTCUSDT"`},
		{"subscribe", http.MethodPost, "/api/v1/subscribe", `{"symbol":"ETHUSDT"}`, "tok", http.StatusOK, `"id":4`},
		{"remove", http.MethodDelete, "/api/v1/subscriptions/3", "", "tok", http.StatusOK, `"deleted_id":3`},
		{"health", http.MethodGet, "/health", "", "", http.StatusOK, `"engine":"idle"`},
		{"metrics", http.MethodGet, "/metrics", "", "", http.StatusOK, `go_goroutines`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestRoutes_RateLimit(t *testing.T) {
	authSvc := new(AuthMock)
	subs := new(SubscriptionsMock)
	r := chi.NewRouter()
	RegisterRoutes(r, slog.New(slog.NewTextHandler(io.Discard, nil)), Deps{
		Auth:          authSvc,
		Subscriptions: subs,
		Prices:        pricesStub{},
		DB:            dbStub{},
		Limiter:       rate.NewLimiter(rate.Limit(0.001), 1),
	})
	authSvc.On("ValidateToken", mock.Anything, "tok").Return(&models.User{ID: 1, Username: "alice"}, nil)
	subs.On("List", mock.Anything, int64(1)).Return([]models.Subscription{}, nil)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions", nil)
		req.Header.Set("Authorization", "Bearer tok")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
