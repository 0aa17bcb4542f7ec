package pricealert

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/price-alert/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/price-alert/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/price-alert/internal/http/handlers/health"
	"github.com/magabrotheeeer/price-alert/internal/http/handlers/price"
	"github.com/magabrotheeeer/price-alert/internal/http/handlers/subscription/create"
	"github.com/magabrotheeeer/price-alert/internal/http/handlers/subscription/list"
	"github.com/magabrotheeeer/price-alert/internal/http/handlers/subscription/remove"
	"github.com/magabrotheeeer/price-alert/internal/http/middlewarectx"
)

// AuthService регистрация, вход и проверка токена.
type AuthService interface {
	register.Service
	login.Service
	middlewarectx.Service
}

// SubscriptionService операции над подписками пользователя.
type SubscriptionService interface {
	create.Service
	list.Service
	remove.Service
}

// Deps зависимости HTTP-слоя.
type Deps struct {
	Auth          AuthService
	Subscriptions SubscriptionService
	Prices        price.Cache
	DB            health.Checker
	// EngineState nil, если движок в этом процессе не запущен.
	EngineState func() string
	Limiter     *rate.Limiter
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, deps.Auth).ServeHTTP)
		r.Post("/token", login.New(logger, deps.Auth).ServeHTTP)
		r.Get("/prices/{symbol}", price.New(logger, deps.Prices).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(deps.Auth, logger))
			r.Use(middlewarectx.RateLimitMiddleware(deps.Limiter, logger))
			r.Post("/subscribe", create.New(logger, deps.Subscriptions).ServeHTTP)
			r.Get("/subscriptions", list.New(logger, deps.Subscriptions).ServeHTTP)
			r.Delete("/subscriptions/{id}", remove.New(logger, deps.Subscriptions).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, deps.DB, deps.EngineState).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
