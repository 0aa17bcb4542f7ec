package alert

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/price-alert/internal/models"
)

type MockFeed struct {
	mock.Mock
}

func (m *MockFeed) Fetch(ctx context.Context) ([]models.PriceQuote, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PriceQuote), args.Error(1)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) BeginReadScope(ctx context.Context) (ReadScope, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ReadScope), args.Error(1)
}

type MockPriceCache struct {
	mock.Mock
}

func (m *MockPriceCache) SetPrices(ctx context.Context, quotes []models.PriceQuote) error {
	args := m.Called(ctx, quotes)
	return args.Error(0)
}

// fakeScope область чтения в памяти со счётчиками завершения.
type fakeScope struct {
	mu         sync.Mutex
	subs       []models.Subscription
	addresses  map[int64]string
	listErr    error
	addrErr    error
	commitErr  error
	panicOnAdr bool
	commits    int
	rollbacks  int
}

func (s *fakeScope) ListAllSubscriptions(_ context.Context) ([]models.Subscription, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.subs, nil
}

func (s *fakeScope) GetUserNotificationAddress(ctx context.Context, userID int64) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if s.panicOnAdr {
		panic("address lookup exploded")
	}
	if s.addrErr != nil {
		return "", false, s.addrErr
	}
	addr, ok := s.addresses[userID]
	return addr, ok, nil
}

func (s *fakeScope) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	return s.commitErr
}

func (s *fakeScope) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commits > 0 {
		return errors.New("tx already done")
	}
	s.rollbacks++
	return nil
}

func (s *fakeScope) counts() (commits, rollbacks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits, s.rollbacks
}

type sentAlert struct {
	Recipient string
	Text      string
}

// recordingNotifier запоминает отправки. fail и block задают поведение по получателю.
type recordingNotifier struct {
	mu      sync.Mutex
	sent    []sentAlert
	ctxs    []context.Context
	fail    map[string]error
	panicOn map[string]bool
	// hang держит отправку этим получателям до истечения ctx.
	hang map[string]bool
	// block, если задан, держит отправку до закрытия канала или отмены ctx.
	block   chan struct{}
	entered chan struct{}
}

func (n *recordingNotifier) Send(ctx context.Context, recipient, text string) error {
	if n.entered != nil {
		select {
		case n.entered <- struct{}{}:
		default:
		}
	}
	if n.block != nil {
		select {
		case <-n.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if n.hang[recipient] {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.panicOn[recipient] {
		panic("transport exploded")
	}
	if err := n.fail[recipient]; err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentAlert{Recipient: recipient, Text: text})
	n.ctxs = append(n.ctxs, ctx)
	return nil
}

func (n *recordingNotifier) sentAlerts() []sentAlert {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentAlert, len(n.sent))
	copy(out, n.sent)
	return out
}

// fakeClock отдаёт таймер, который срабатывает только по fire.
type fakeClock struct {
	afterCalls chan time.Duration
	tick       chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		afterCalls: make(chan time.Duration, 16),
		tick:       make(chan time.Time),
	}
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.afterCalls <- d
	return c.tick
}

// waitAfter ждёт, пока движок закончит цикл и заведёт таймер.
func (c *fakeClock) waitAfter(t *testing.T) time.Duration {
	t.Helper()
	select {
	case d := <-c.afterCalls:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not schedule the next cycle")
		return 0
	}
}

func (c *fakeClock) fire(t *testing.T) {
	t.Helper()
	select {
	case c.tick <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatal("engine is not waiting for the timer")
	}
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}
