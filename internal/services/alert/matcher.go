package alert

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/price-alert/internal/models"
)

// quoteIndex символ -> первая запись снимка с этим символом.
type quoteIndex map[string]models.PriceQuote

func indexQuotes(quotes []models.PriceQuote) quoteIndex {
	idx := make(quoteIndex, len(quotes))
	for _, q := range quotes {
		if _, ok := idx[q.Symbol]; ok {
			continue
		}
		idx[q.Symbol] = q
	}
	return idx
}

// evaluate проверяет подписку по снимку. Подписка срабатывает, если символ
// есть в снимке и порог не задан либо цена не выше порога.
// Цена разбирается всегда, даже без порога: она попадает в текст уведомления.
func (idx quoteIndex) evaluate(sub models.Subscription) (decimal.Decimal, bool, error) {
	q, ok := idx[sub.Symbol]
	if !ok {
		return decimal.Decimal{}, false, nil
	}
	price, err := decimal.NewFromString(q.Price)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("%w: %s=%q: %w", ErrPriceParse, q.Symbol, q.Price, err)
	}
	if !sub.Threshold.Valid {
		return price, true, nil
	}
	return price, price.LessThanOrEqual(sub.Threshold.Decimal), nil
}

// FormatAlert текст уведомления о сработавшей подписке.
func FormatAlert(symbol string, price decimal.Decimal) string {
	return fmt.Sprintf("Alert Price for %s is %s", symbol, price.String())
}
