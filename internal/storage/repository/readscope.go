package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/magabrotheeeer/price-alert/internal/models"
)

// queryer общий интерфейс *sql.DB и *sql.Tx для чтения.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ReadScope транзакция только на чтение с согласованным снимком данных
// на время одного цикла движка. Должна завершаться Commit или Rollback.
type ReadScope struct {
	tx *sql.Tx
}

// BeginReadScope открывает read-only транзакцию уровня REPEATABLE READ.
func (s *Storage) BeginReadScope(ctx context.Context) (*ReadScope, error) {
	const op = "storage.BeginReadScope"
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &ReadScope{tx: tx}, nil
}

// ListAllSubscriptions возвращает все подписки без фильтрации.
func (r *ReadScope) ListAllSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	const op = "storage.ListAllSubscriptions"
	subs, err := querySubscriptions(ctx, r.tx, `SELECT id, user_id, symbol, price FROM subscriptions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// GetUserNotificationAddress возвращает telegram chat id пользователя строкой.
// false, если пользователя нет или адрес не указан.
func (r *ReadScope) GetUserNotificationAddress(ctx context.Context, userID int64) (string, bool, error) {
	const op = "storage.GetUserNotificationAddress"
	var telegramID sql.NullInt64
	err := r.tx.QueryRowContext(ctx, `SELECT telegram_id FROM users WHERE id = $1`, userID).Scan(&telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	if !telegramID.Valid {
		return "", false, nil
	}
	return strconv.FormatInt(telegramID.Int64, 10), true, nil
}

// Commit фиксирует транзакцию.
func (r *ReadScope) Commit() error {
	if err := r.tx.Commit(); err != nil {
		return fmt.Errorf("storage.ReadScope.Commit: %w", err)
	}
	return nil
}

// Rollback откатывает транзакцию. После Commit возвращает sql.ErrTxDone.
func (r *ReadScope) Rollback() error {
	return r.tx.Rollback()
}

func querySubscriptions(ctx context.Context, q queryer, query string, args ...any) ([]models.Subscription, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.Subscription, 0)
	for rows.Next() {
		var sub models.Subscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Symbol, &sub.Threshold); err != nil {
			return nil, err
		}
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
