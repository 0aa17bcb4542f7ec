package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/price-alert/internal/models"
)

// CreateSubscription сохраняет подписку пользователя. Неизвестный userID
// возвращается как ErrNotFound.
func (s *Storage) CreateSubscription(ctx context.Context, userID int64, symbol string, threshold decimal.NullDecimal) (*models.Subscription, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_id, symbol, price)
			  VALUES ($1, $2, $3)
			  RETURNING id`
	sub := &models.Subscription{UserID: userID, Symbol: symbol, Threshold: threshold}
	if err := s.DB.QueryRowContext(ctx, query, userID, symbol, threshold).Scan(&sub.ID); err != nil {
		if isPgError(err, pgerrcode.ForeignKeyViolation) {
			return nil, fmt.Errorf("%s: user %d: %w", op, userID, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// ListSubscriptionsByUser возвращает подписки пользователя в порядке создания.
func (s *Storage) ListSubscriptionsByUser(ctx context.Context, userID int64) ([]models.Subscription, error) {
	const op = "storage.ListSubscriptionsByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, symbol, price
			  FROM subscriptions
			  WHERE user_id = $1
			  ORDER BY id`
	subs, err := querySubscriptions(ctx, s.DB, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// RemoveSubscription удаляет подписку, только если она принадлежит userID.
func (s *Storage) RemoveSubscription(ctx context.Context, id, userID int64) error {
	const op = "storage.RemoveSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: subscription %d: %w", op, id, ErrNotFound)
	}
	return nil
}
