package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/price-alert/internal/migrations"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции проекта.
func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(ctx, connStr)
	require.NoError(t, err, "failed to create storage")

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	t.Cleanup(func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})
	return storage
}

// TestDataFactory создаёт тестовые записи напрямую через SQL.
type TestDataFactory struct {
	storage *Storage
}

func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создаёт пользователя, telegramID может быть nil.
func (f *TestDataFactory) CreateUser(t *testing.T, username string, telegramID *int64) int64 {
	var id int64
	err := f.storage.DB.QueryRow(`INSERT INTO users (username, hashed_password, telegram_id)
		VALUES ($1, 'hash', $2) RETURNING id`, username, telegramID).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateSubscription создаёт подписку, price "" означает NULL.
func (f *TestDataFactory) CreateSubscription(t *testing.T, userID int64, symbol, price string) int64 {
	var (
		id  int64
		arg any
	)
	if price != "" {
		arg = price
	}
	err := f.storage.DB.QueryRow(`INSERT INTO subscriptions (user_id, symbol, price)
		VALUES ($1, $2, $3::numeric) RETURNING id`, userID, symbol, arg).Scan(&id)
	require.NoError(t, err)
	return id
}

func int64Ptr(v int64) *int64 { return &v }
