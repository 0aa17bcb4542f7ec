// Package price отдаёт последнюю цену символа, которую видел движок алертов.
package price

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/price-alert/internal/http/response"
	"github.com/magabrotheeeer/price-alert/internal/lib/sl"
	"github.com/magabrotheeeer/price-alert/internal/models"
	"github.com/magabrotheeeer/price-alert/internal/services/subscription"
)

// Cache читает цену из кеша снимков.
type Cache interface {
	GetPrice(ctx context.Context, symbol string) (models.PriceQuote, bool, error)
}

// Handler обрабатывает GET /prices/{symbol}.
type Handler struct {
	log   *slog.Logger
	cache Cache
}

// New создает новый Handler.
func New(log *slog.Logger, cache Cache) *Handler {
	return &Handler{
		log:   log,
		cache: cache,
	}
}

// ServeHTTP godoc
// @Summary Последняя цена символа
// @Tags Prices
// @Produce  json
// @Param symbol path string true "Символ, например BTCUSDT"
// @Success 200 {object} map[string]any "Цена из последнего опроса"
// @Failure 404 {object} response.ErrorResponse "Цена неизвестна"
// @Failure 500 {object} response.ErrorResponse "Ошибка кеша"
// @Router /prices/{symbol} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.price.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	symbol := subscription.NormalizeSymbol(chi.URLParam(r, "symbol"))
	if symbol == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid symbol"))
		return
	}

	quote, found, err := h.cache.GetPrice(r.Context(), symbol)
	if err != nil {
		log.Error("failed to read price from cache", slog.String("symbol", symbol), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to read price"))
		return
	}
	if !found {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("price not found"))
		return
	}

	render.JSON(w, r, response.OKWithData(quote))
}
