// Package cache хранит в redis последние цены, увиденные движком алертов.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/price-alert/internal/config"
	"github.com/magabrotheeeer/price-alert/internal/models"
)

const priceKeyPrefix = "price:"

// Cache обёртка над клиентом redis.
type Cache struct {
	Db       *redis.Client
	priceTTL time.Duration
}

// InitServer подключается к redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddress,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		Username:     cfg.RedisUser,
		MaxRetries:   cfg.RedisMaxRetries,
		DialTimeout:  cfg.RedisDialTimeout,
		ReadTimeout:  cfg.RedisTimeoutRedis,
		WriteTimeout: cfg.RedisTimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{Db: db, priceTTL: cfg.PriceTTL}, nil
}

// Get читает JSON по ключу в result. false, если ключа нет.
func (c *Cache) Get(ctx context.Context, key string, result any) (bool, error) {
	const op = "cache.Get"
	val, err := c.Db.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(val, result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сохраняет value в JSON.
func (c *Cache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	const op = "cache.Set"
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.Db.Set(ctx, key, jsonData, expiration).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Invalidate удаляет ключ.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	const op = "cache.Invalidate"
	if err := c.Db.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetPrices записывает снимок цен одним pipeline. При повторе символа
// остаётся первая запись, как и при сопоставлении в движке.
func (c *Cache) SetPrices(ctx context.Context, quotes []models.PriceQuote) error {
	const op = "cache.SetPrices"
	if len(quotes) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(quotes))
	pipe := c.Db.Pipeline()
	for _, q := range quotes {
		if _, ok := seen[q.Symbol]; ok {
			continue
		}
		seen[q.Symbol] = struct{}{}
		data, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		pipe.Set(ctx, priceKey(q.Symbol), data, c.priceTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetPrice возвращает последнюю сохранённую цену символа.
func (c *Cache) GetPrice(ctx context.Context, symbol string) (models.PriceQuote, bool, error) {
	const op = "cache.GetPrice"
	var q models.PriceQuote
	found, err := c.Get(ctx, priceKey(symbol), &q)
	if err != nil {
		return models.PriceQuote{}, false, fmt.Errorf("%s: %w", op, err)
	}
	return q, found, nil
}

// Close закрывает соединение с redis.
func (c *Cache) Close() error {
	return c.Db.Close()
}

func priceKey(symbol string) string {
	return priceKeyPrefix + symbol
}
