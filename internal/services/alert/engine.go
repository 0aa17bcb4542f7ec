// Package alert реализует движок ценовых алертов: периодически забирает
// снимок цен, сверяет его со всеми подписками и отправляет уведомления
// по сработавшим.
//
// Повторы не подавляются: подписка, условие которой остаётся истинным,
// срабатывает на каждом цикле.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/price-alert/internal/lib/metrics"
	"github.com/magabrotheeeer/price-alert/internal/lib/sl"
	"github.com/magabrotheeeer/price-alert/internal/models"
)

// Feed источник снимка цен.
type Feed interface {
	Fetch(ctx context.Context) ([]models.PriceQuote, error)
}

// Notifier доставляет текст получателю.
type Notifier interface {
	Send(ctx context.Context, recipient, text string) error
}

// ReadScope транзакционная область чтения на один цикл.
type ReadScope interface {
	ListAllSubscriptions(ctx context.Context) ([]models.Subscription, error)
	GetUserNotificationAddress(ctx context.Context, userID int64) (string, bool, error)
	Commit() error
	Rollback() error
}

// Store открывает области чтения.
type Store interface {
	BeginReadScope(ctx context.Context) (ReadScope, error)
}

// PriceCache сохраняет последний снимок для API.
type PriceCache interface {
	SetPrices(ctx context.Context, quotes []models.PriceQuote) error
}

// Clock источник таймеров, подменяется в тестах.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// State состояние движка.
type State int32

const (
	StateIdle State = iota
	StatePolling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config параметры движка.
type Config struct {
	// PollInterval пауза после завершения цикла до начала следующего.
	PollInterval time.Duration
	// CycleTimeout ограничивает получение цен и каждый запрос к хранилищу.
	// Отправки им не ограничены.
	CycleTimeout time.Duration
	// SendTimeout ограничивает одну отправку.
	SendTimeout time.Duration
}

// CycleReport итог одного цикла.
type CycleReport struct {
	CycleID     string
	Quotes      int
	Evaluated   int
	Triggered   int
	Sent        int
	Failed      int
	NoAddress   int
	ParseErrors int
	// Err ошибка уровня цикла: источник цен, хранилище или паника.
	Err error
}

// Engine движок алертов.
type Engine struct {
	feed     Feed
	store    Store
	notifier Notifier
	cache    PriceCache
	metrics  *metrics.Engine
	clock    Clock
	cfg      Config
	log      *slog.Logger
	state    atomic.Int32
}

// Option дополнительная настройка движка.
type Option func(*Engine)

// WithClock подменяет часы.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithPriceCache включает запись снимка цен в кеш.
func WithPriceCache(c PriceCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithMetrics включает prometheus-метрики.
func WithMetrics(m *metrics.Engine) Option {
	return func(e *Engine) { e.metrics = m }
}

// New создаёт движок. Нулевые таймауты заменяются значениями по умолчанию.
func New(feed Feed, store Store, notifier Notifier, cfg Config, log *slog.Logger, opts ...Option) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = time.Minute
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	e := &Engine{
		feed:     feed,
		store:    store,
		notifier: notifier,
		clock:    realClock{},
		cfg:      cfg,
		log:      log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State текущее состояние движка.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Handle управляет запущенным циклом опроса.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop останавливает таймер. Идущий цикл доводится до конца.
func (h *Handle) Stop() {
	h.cancel()
}

// Wait ждёт выхода из цикла опроса.
func (h *Handle) Wait() {
	<-h.done
}

// Done закрывается после выхода из цикла опроса.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start запускает цикл опроса в отдельной горутине.
func (e *Engine) Start(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		e.Run(ctx)
	}()
	return h
}

// Run выполняет первый цикл сразу, затем каждый следующий через PollInterval
// после завершения предыдущего. Возвращается после отмены ctx.
func (e *Engine) Run(ctx context.Context) {
	const op = "alert.Engine.Run"
	log := e.log.With(sl.Op(op))
	log.Info("alert engine started", slog.Duration("poll_interval", e.cfg.PollInterval))

	for {
		if ctx.Err() != nil {
			break
		}
		e.RunCycle(context.WithoutCancel(ctx))

		select {
		case <-ctx.Done():
		case <-e.clock.After(e.cfg.PollInterval):
		}
	}
	log.Info("alert engine stopped")
}

// RunCycle выполняет один цикл: снимок цен, область чтения, сопоставление,
// уведомления, commit. Ошибки не возвращаются наружу, а попадают в отчёт и лог.
// Отмена ctx не прерывает начатый цикл: транзакция чтения живёт до commit,
// запросы ограничены CycleTimeout, отправки SendTimeout.
func (e *Engine) RunCycle(ctx context.Context) (report CycleReport) {
	const op = "alert.Engine.RunCycle"
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	report.CycleID = uuid.NewString()
	log := e.log.With(sl.Op(op), slog.String("cycle_id", report.CycleID))

	e.state.Store(int32(StatePolling))
	result := metrics.ResultOK
	defer func() {
		if r := recover(); r != nil {
			report.Err = fmt.Errorf("%s: panic: %v", op, r)
			result = metrics.ResultPanic
			log.Error("cycle panicked", sl.Err(report.Err))
		}
		e.metrics.ObserveCycle(result, time.Since(start))
		e.state.Store(int32(StateIdle))
	}()

	fetchCtx, cancelFetch := context.WithTimeout(ctx, e.cfg.CycleTimeout)
	quotes, err := e.feed.Fetch(fetchCtx)
	cancelFetch()
	if err != nil {
		report.Err = fmt.Errorf("%s: %w: %w", op, ErrFeedUnavailable, err)
		result = metrics.ResultFeedError
		log.Error("failed to fetch prices", sl.Err(report.Err))
		return report
	}
	report.Quotes = len(quotes)

	if e.cache != nil {
		cacheCtx, cancelCache := context.WithTimeout(ctx, e.cfg.CycleTimeout)
		err := e.cache.SetPrices(cacheCtx, quotes)
		cancelCache()
		if err != nil {
			log.Warn("failed to cache prices", sl.Err(err))
		}
	}

	scope, err := e.store.BeginReadScope(ctx)
	if err != nil {
		report.Err = fmt.Errorf("%s: %w", op, err)
		result = metrics.ResultStoreError
		log.Error("failed to open read scope", sl.Err(report.Err))
		return report
	}
	finished := false
	defer func() {
		if finished {
			return
		}
		if err := scope.Rollback(); err != nil {
			log.Warn("failed to rollback read scope", sl.Err(err))
		}
	}()

	listCtx, cancelList := context.WithTimeout(ctx, e.cfg.CycleTimeout)
	subs, err := scope.ListAllSubscriptions(listCtx)
	cancelList()
	if err != nil {
		report.Err = fmt.Errorf("%s: %w", op, err)
		result = metrics.ResultStoreError
		log.Error("failed to list subscriptions", sl.Err(report.Err))
		return report
	}
	report.Evaluated = len(subs)
	e.metrics.AddEvaluated(len(subs))

	index := indexQuotes(quotes)
	for _, sub := range subs {
		price, triggered, err := index.evaluate(sub)
		if err != nil {
			report.ParseErrors++
			e.metrics.IncNotification(metrics.ResultParseFailed)
			log.Warn("skipping subscription", slog.Int64("subscription_id", sub.ID), sl.Err(err))
			continue
		}
		if !triggered {
			continue
		}
		report.Triggered++
		e.notify(ctx, log, scope, sub, price, &report)
	}

	finished = true
	if err := scope.Commit(); err != nil {
		report.Err = fmt.Errorf("%s: %w", op, err)
		result = metrics.ResultStoreError
		log.Error("failed to commit read scope", sl.Err(report.Err))
		return report
	}

	log.Info("cycle finished",
		slog.Int("quotes", report.Quotes),
		slog.Int("evaluated", report.Evaluated),
		slog.Int("triggered", report.Triggered),
		slog.Int("sent", report.Sent),
		slog.Int("failed", report.Failed),
	)
	return report
}

func (e *Engine) notify(ctx context.Context, log *slog.Logger, scope ReadScope, sub models.Subscription, price decimal.Decimal, report *CycleReport) {
	log = log.With(slog.Int64("subscription_id", sub.ID), slog.Int64("user_id", sub.UserID))

	addrCtx, cancelAddr := context.WithTimeout(ctx, e.cfg.CycleTimeout)
	addr, ok, err := scope.GetUserNotificationAddress(addrCtx, sub.UserID)
	cancelAddr()
	if err != nil || !ok {
		report.NoAddress++
		e.metrics.IncNotification(metrics.ResultNoAddress)
		if err != nil {
			log.Error("failed to resolve address", sl.Err(fmt.Errorf("%w: %w", ErrAddressUnresolved, err)))
		} else {
			log.Info("user has no notification address, skipping")
		}
		return
	}

	text := FormatAlert(sub.Symbol, price)
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.SendTimeout)
	defer cancel()
	sendCtx = withAlert(sendCtx, models.AlertMessage{
		CycleID:        report.CycleID,
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Symbol:         sub.Symbol,
		Price:          price.String(),
	})

	if err := e.safeSend(sendCtx, addr, text); err != nil {
		report.Failed++
		e.metrics.IncNotification(metrics.ResultFailed)
		log.Error("failed to send alert", sl.Err(fmt.Errorf("%w: %w", ErrSendFailed, err)))
		return
	}
	report.Sent++
	e.metrics.IncNotification(metrics.ResultSent)
	log.Debug("alert sent", slog.String("symbol", sub.Symbol), slog.String("price", price.String()))
}

// safeSend превращает панику транспорта в ошибку одной отправки.
func (e *Engine) safeSend(ctx context.Context, recipient, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()
	return e.notifier.Send(ctx, recipient, text)
}

type alertCtxKey struct{}

func withAlert(ctx context.Context, msg models.AlertMessage) context.Context {
	return context.WithValue(ctx, alertCtxKey{}, msg)
}

// AlertFromContext возвращает сведения о сработавшей подписке, которые движок
// кладёт в контекст отправки.
func AlertFromContext(ctx context.Context) (models.AlertMessage, bool) {
	msg, ok := ctx.Value(alertCtxKey{}).(models.AlertMessage)
	return msg, ok
}
