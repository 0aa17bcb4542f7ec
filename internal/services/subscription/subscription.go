// Package subscription содержит бизнес-логику управления подписками на цену.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/price-alert/internal/lib/sl"
	"github.com/magabrotheeeer/price-alert/internal/models"
)

var (
	// ErrInvalidSymbol символ пустой после нормализации.
	ErrInvalidSymbol = errors.New("invalid symbol")
	// ErrInvalidThreshold порог задан, но не положителен.
	ErrInvalidThreshold = errors.New("threshold must be positive")
)

const listCacheTTL = 10 * time.Minute

// Repository определяет методы для работы с подписками в хранилище.
type Repository interface {
	// CreateSubscription добавляет подписку пользователя.
	CreateSubscription(ctx context.Context, userID int64, symbol string, threshold decimal.NullDecimal) (*models.Subscription, error)
	// ListSubscriptionsByUser возвращает все подписки пользователя.
	ListSubscriptionsByUser(ctx context.Context, userID int64) ([]models.Subscription, error)
	// RemoveSubscription удаляет подписку, если она принадлежит пользователю.
	RemoveSubscription(ctx context.Context, id, userID int64) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Service реализует работу с подписками и кэширует список подписок пользователя.
type Service struct {
	repo  Repository
	cache Cache
	log   *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// NormalizeSymbol приводит символ к виду, в котором его отдаёт источник цен.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Create создает подписку. Без порога уведомление приходит на каждом опросе.
func (s *Service) Create(ctx context.Context, userID int64, req models.DummySubscription) (*models.Subscription, error) {
	const op = "subscription.Create"

	symbol := NormalizeSymbol(req.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidSymbol)
	}

	var threshold decimal.NullDecimal
	if req.Price != nil {
		if *req.Price <= 0 {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidThreshold)
		}
		threshold = decimal.NewNullDecimal(decimal.NewFromFloat(*req.Price))
	}

	sub, err := s.repo.CreateSubscription(ctx, userID, symbol, threshold)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("created new subscription",
		slog.Int64("id", sub.ID),
		slog.Int64("user_id", userID),
		slog.String("symbol", symbol))

	s.invalidate(ctx, userID)
	return sub, nil
}

// List возвращает подписки пользователя, сначала пытаясь прочитать их из кэша.
func (s *Service) List(ctx context.Context, userID int64) ([]models.Subscription, error) {
	const op = "subscription.List"

	key := listKey(userID)
	var cached []models.Subscription
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("failed to read from cache", slog.String("key", key), sl.Err(err))
	}
	if found && err == nil {
		return cached, nil
	}

	subs, err := s.repo.ListSubscriptionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(ctx, key, subs, listCacheTTL); err != nil {
		s.log.Warn("failed to add to cache", slog.String("key", key), sl.Err(err))
	}
	return subs, nil
}

// Remove удаляет подписку пользователя и инвалидирует кэш.
func (s *Service) Remove(ctx context.Context, userID, id int64) error {
	const op = "subscription.Remove"
	if err := s.repo.RemoveSubscription(ctx, id, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("removed subscription", slog.Int64("id", id), slog.Int64("user_id", userID))
	s.invalidate(ctx, userID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, userID int64) {
	key := listKey(userID)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.log.Warn("failed to remove from cache", slog.String("key", key), sl.Err(err))
	}
}

func listKey(userID int64) string {
	return fmt.Sprintf("subscriptions:user:%d", userID)
}
