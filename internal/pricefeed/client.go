// Package pricefeed забирает снимок текущих цен у внешнего источника.
//
// Источник отдаёт JSON-массив объектов {"symbol": "...", "price": "..."},
// цена передаётся строкой. Повторов клиент не делает: следующая попытка
// произойдёт на следующем цикле движка.
package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/magabrotheeeer/price-alert/internal/models"
)

// maxBodySize ограничивает размер ответа источника.
const maxBodySize = 16 << 20

var (
	// ErrBadStatus источник ответил не 2xx.
	ErrBadStatus = errors.New("unexpected feed status")
	// ErrMalformed ответ не соответствует ожидаемой форме.
	ErrMalformed = errors.New("malformed feed response")
)

// Client HTTP-клиент источника цен.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient создаёт клиент для url с таймаутом на весь запрос.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch делает один GET и возвращает снимок цен в порядке источника.
func (c *Client) Fetch(ctx context.Context) ([]models.PriceQuote, error) {
	const op = "pricefeed.Fetch"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("%s: %w: %s", op, ErrBadStatus, resp.Status)
	}

	var quotes []models.PriceQuote
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&quotes); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformed, err)
	}
	if quotes == nil {
		return nil, fmt.Errorf("%s: %w: null body", op, ErrMalformed)
	}
	for i, q := range quotes {
		if q.Symbol == "" || q.Price == "" {
			return nil, fmt.Errorf("%s: %w: entry %d has empty symbol or price", op, ErrMalformed, i)
		}
	}
	return quotes, nil
}
