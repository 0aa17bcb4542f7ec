// Package models содержит доменные структуры, описывающие подписку на цену,
// а также вспомогательные типы для приёма данных из JSON-запросов.
package models

import "github.com/shopspring/decimal"

// Subscription представляет подписку пользователя на цену символа.
// Threshold может быть невалидным (NULL): это означает, что уведомление
// отправляется на каждом опросе независимо от цены.
type Subscription struct {
	ID        int64               `json:"id"`
	UserID    int64               `json:"user_id"`
	Symbol    string              `json:"symbol"`
	Threshold decimal.NullDecimal `json:"price"`
}

// DummySubscription используется для приёма данных из JSON-запроса,
// прежде чем конвертировать их в Subscription.
type DummySubscription struct {
	Symbol string   `json:"symbol" validate:"required,max=32"`         // Символ, например BTCUSDT
	Price  *float64 `json:"price,omitempty" validate:"omitempty,gt=0"` // Порог цены, опционально
}
