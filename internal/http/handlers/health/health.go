// Package health отдаёт состояние сервиса: доступность базы и фазу движка алертов.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/price-alert/internal/http/response"
	"github.com/magabrotheeeer/price-alert/internal/lib/sl"
)

const checkTimeout = 2 * time.Second

// Checker проверяет доступность базы данных.
type Checker interface {
	CheckDatabaseReady(ctx context.Context) error
}

// Handler обрабатывает GET /health.
type Handler struct {
	log         *slog.Logger
	db          Checker
	engineState func() string
}

// New создает Handler. engineState может быть nil, если движок выключен.
func New(log *slog.Logger, db Checker, engineState func() string) *Handler {
	return &Handler{
		log:         log,
		db:          db,
		engineState: engineState,
	}
}

// ServeHTTP godoc
// @Summary Проверка состояния
// @Tags Service
// @Produce  json
// @Success 200 {object} map[string]any "Сервис готов"
// @Failure 503 {object} response.ErrorResponse "База данных недоступна"
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	if err := h.db.CheckDatabaseReady(ctx); err != nil {
		h.log.Error("database is not ready", slog.String("op", op), sl.Err(err))
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("database is not ready"))
		return
	}

	engine := "disabled"
	if h.engineState != nil {
		engine = h.engineState()
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"status": "ok",
		"engine": engine,
	}))
}
