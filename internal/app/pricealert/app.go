// Package pricealert собирает API и движок алертов в одно приложение.
package pricealert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/price-alert/internal/cache"
	"github.com/magabrotheeeer/price-alert/internal/config"
	"github.com/magabrotheeeer/price-alert/internal/lib/jwt"
	"github.com/magabrotheeeer/price-alert/internal/lib/metrics"
	"github.com/magabrotheeeer/price-alert/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/price-alert/internal/lib/sl"
	"github.com/magabrotheeeer/price-alert/internal/lib/telegram"
	"github.com/magabrotheeeer/price-alert/internal/migrations"
	"github.com/magabrotheeeer/price-alert/internal/pricefeed"
	"github.com/magabrotheeeer/price-alert/internal/services/alert"
	"github.com/magabrotheeeer/price-alert/internal/services/auth"
	"github.com/magabrotheeeer/price-alert/internal/services/subscription"
	"github.com/magabrotheeeer/price-alert/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

var (
	_ AuthService         = (*auth.Service)(nil)
	_ SubscriptionService = (*subscription.Service)(nil)
	_ alert.Store         = storeAdapter{}
)

// App HTTP API и фоновый движок алертов над общим пулом базы.
type App struct {
	server *http.Server
	engine *alert.Engine
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	amqp   *amqp.Connection
}

// New поднимает зависимости и собирает приложение. При ошибке уже открытые
// ресурсы закрываются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (app *App, err error) {
	const op = "pricealert.New"
	a := &App{logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.db, err = repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(a.db.DB, cfg.MigrationsPath); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	authService := auth.NewService(a.db, jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL))
	subscriptionService := subscription.NewService(a.db, a.cache, logger)

	var engineState func() string
	if !cfg.EngineDisabled {
		notifier, err := a.newNotifier(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.engine = alert.New(
			pricefeed.NewClient(cfg.PriceFeedURL, cfg.PriceFeedTimeout),
			storeAdapter{a.db},
			notifier,
			alert.Config{
				PollInterval: cfg.PollInterval,
				CycleTimeout: cfg.CycleTimeout,
				SendTimeout:  cfg.SendTimeout,
			},
			logger,
			alert.WithPriceCache(a.cache),
			alert.WithMetrics(metrics.NewEngine(prometheus.DefaultRegisterer)),
		)
		engineState = func() string { return a.engine.State().String() }
	} else {
		logger.Warn("alert engine is disabled")
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Deps{
		Auth:          authService,
		Subscriptions: subscriptionService,
		Prices:        a.cache,
		DB:            a.db,
		EngineState:   engineState,
		Limiter:       rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	})

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return a, nil
}

// newNotifier выбирает способ доставки: напрямую в Telegram или через брокер.
func (a *App) newNotifier(ctx context.Context, cfg *config.Config) (alert.Notifier, error) {
	switch cfg.Notifier {
	case config.NotifierQueue:
		conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			return nil, err
		}
		a.amqp = conn
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
		if err != nil {
			return nil, err
		}
		a.logger.Info("alerts are published to broker", slog.String("exchange", rabbitmq.NotificationsExchange))
		return alert.NewQueueNotifier(ch), nil
	default:
		client, err := telegram.New(telegram.Options{
			Token:    cfg.TelegramToken,
			Endpoint: cfg.TelegramEndpoint,
			Rate:     cfg.TelegramRateLimit,
			Timeout:  cfg.TelegramTimeout,
		})
		if err != nil {
			return nil, err
		}
		a.logger.Info("alerts are sent to telegram", slog.String("bot", client.BotName()))
		return client, nil
	}
}

// Run обслуживает HTTP и крутит движок до отмены ctx или падения сервера.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		return a.server.Shutdown(timeoutCtx)
	})

	if a.engine != nil {
		handle := a.engine.Start(gctx)
		g.Go(func() error {
			handle.Wait()
			a.logger.Info("alert engine stopped")
			return nil
		})
	}

	err := g.Wait()
	a.close()
	return err
}

func (a *App) close() {
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			a.logger.Error("failed to close broker connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close database", sl.Err(err))
		}
	}
}

// storeAdapter отдаёт движку ReadScope хранилища как интерфейс alert.ReadScope.
type storeAdapter struct {
	s *repository.Storage
}

func (a storeAdapter) BeginReadScope(ctx context.Context) (alert.ReadScope, error) {
	scope, err := a.s.BeginReadScope(ctx)
	if err != nil {
		return nil, err
	}
	return scope, nil
}
