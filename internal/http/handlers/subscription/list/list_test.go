package list

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/price-alert/internal/http/middlewarectx"
	"github.com/magabrotheeeer/price-alert/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) List(ctx context.Context, userID int64) ([]models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Subscription), args.Error(1)
}

func newRequest(userID any) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/subscriptions", nil)
	if userID != nil {
		req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, userID))
	}
	return req
}

func TestListHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("lists caller subscriptions", func(t *testing.T) {
		svc := new(MockService)
		svc.On("List", mock.Anything, int64(3)).Return([]models.Subscription{
			{ID: 1, UserID: 3, Symbol: "BTCUSDT", Threshold: decimal.NewNullDecimal(decimal.RequireFromString("29000.5"))},
			{ID: 2, UserID: 3, Symbol: "ETHUSDT"},
		}, nil).Once()

		w := httptest.NewRecorder()
		New(logger, svc).ServeHTTP(w, newRequest(int64(3)))

		require.Equal(t, http.StatusOK, w.Code)
		var got struct {
			Status string `json:"status"`
			Data   struct {
				Subscriptions []models.Subscription `json:"subscriptions"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, "OK", got.Status)
		require.Len(t, got.Data.Subscriptions, 2)
		assert.Equal(t, "BTCUSDT", got.Data.Subscriptions[0].Symbol)
		assert.True(t, got.Data.Subscriptions[0].Threshold.Decimal.Equal(decimal.RequireFromString("29000.5")))
		assert.False(t, got.Data.Subscriptions[1].Threshold.Valid)
		svc.AssertExpectations(t)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		svc := new(MockService)
		svc.On("List", mock.Anything, int64(3)).Return(nil, nil).Once()

		w := httptest.NewRecorder()
		New(logger, svc).ServeHTTP(w, newRequest(int64(3)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"subscriptions":[]`)
	})

	t.Run("unauthorized", func(t *testing.T) {
		svc := new(MockService)
		w := httptest.NewRecorder()
		New(logger, svc).ServeHTTP(w, newRequest(nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	})

	t.Run("service error", func(t *testing.T) {
		svc := new(MockService)
		svc.On("List", mock.Anything, int64(3)).Return(nil, errors.New("db error")).Once()

		w := httptest.NewRecorder()
		New(logger, svc).ServeHTTP(w, newRequest(int64(3)))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), `"error":"failed to list subscriptions"`)
	})
}
