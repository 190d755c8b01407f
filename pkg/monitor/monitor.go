package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradepulse/riskcore/pkg/alert"
	"github.com/tradepulse/riskcore/pkg/backend"
	"github.com/tradepulse/riskcore/pkg/feed"
	"github.com/tradepulse/riskcore/pkg/models"
	"github.com/tradepulse/riskcore/pkg/risk"
)

// Feeds is the slice of feed.Manager the monitor needs; split out so tests
// can run the actor without a live websocket.
type Feeds interface {
	Events() <-chan feed.Event
	Acquire(symbol string)
	Release(symbol string)
}

// Monitor is the evaluation actor for one account. A single goroutine
// serializes both triggers (the backend poll and depth events), captures
// an immutable (account, positions, marks) composite per cycle, and
// publishes the resulting RiskSnapshot and alerts for read-only
// consumers. Nothing outside that goroutine mutates evaluation state.
type Monitor struct {
	accountID    string
	client       backend.Client
	feeds        Feeds
	engine       *alert.Engine
	metrics      *Metrics
	logger       *logrus.Logger
	pollInterval time.Duration

	// Actor-private state, touched only by run().
	account    *models.Account
	positions  []*models.Position
	books      map[string]*models.DepthSnapshot
	subscribed map[string]bool
	seq        uint64

	// Published state, readable by the API while the actor runs.
	mu        sync.RWMutex
	latest    *models.RiskSnapshot
	published map[string]*models.Position

	stopCh chan struct{}
	done   chan struct{}
}

func New(accountID string, client backend.Client, feeds Feeds, engine *alert.Engine, metrics *Metrics, pollInterval time.Duration, logger *logrus.Logger) *Monitor {
	return &Monitor{
		accountID:    accountID,
		client:       client,
		feeds:        feeds,
		engine:       engine,
		metrics:      metrics,
		logger:       logger,
		pollInterval: pollInterval,
		books:        make(map[string]*models.DepthSnapshot),
		subscribed:   make(map[string]bool),
		published:    make(map[string]*models.Position),
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}
}

func (m *Monitor) Start(ctx context.Context) {
	m.logger.WithField("account_id", m.accountID).Info("Starting risk monitor")
	go m.run(ctx)
}

func (m *Monitor) Stop() {
	close(m.stopCh)
	<-m.done
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	// Prime state before the first tick so the API has something to serve.
	if m.poll(ctx) {
		m.evaluate()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			if m.poll(ctx) {
				m.evaluate()
			}
		case ev := <-m.feeds.Events():
			m.applyDepth(ev)
			m.evaluate()
		}
	}
}

// poll refreshes account and position state from the backend. It returns
// false when the cycle must be skipped: the previous snapshot and alerts
// stay published, which beats computing from half-valid data.
func (m *Monitor) poll(ctx context.Context) bool {
	account, err := m.client.GetAccount(ctx, m.accountID)
	if err != nil {
		m.logSkip("account", err)
		return false
	}

	positions, err := m.client.ListPositions(ctx, m.accountID)
	if err != nil {
		m.logSkip("positions", err)
		return false
	}

	m.account = account
	m.positions = positions
	m.reconcileSubscriptions()
	return true
}

func (m *Monitor) logSkip(what string, err error) {
	m.metrics.SkippedCycles.Inc()
	entry := m.logger.WithError(err).WithField("account_id", m.accountID)

	var invalid *backend.InvalidSnapshotError
	if errors.As(err, &invalid) {
		entry.Error("Backend snapshot failed validation, skipping evaluation cycle")
		return
	}
	entry.WithField("source", what).Warn("Backend poll failed, keeping previous risk snapshot")
}

// reconcileSubscriptions keeps exactly one feed subscription per symbol
// with an open position.
func (m *Monitor) reconcileSubscriptions() {
	want := make(map[string]bool, len(m.positions))
	for _, pos := range m.positions {
		want[pos.Symbol] = true
	}

	for symbol := range want {
		if !m.subscribed[symbol] {
			m.feeds.Acquire(symbol)
			m.subscribed[symbol] = true
		}
	}
	for symbol := range m.subscribed {
		if !want[symbol] {
			m.feeds.Release(symbol)
			delete(m.subscribed, symbol)
			delete(m.books, symbol)
		}
	}
}

func (m *Monitor) applyDepth(ev feed.Event) {
	if ev.Stale {
		m.metrics.FeedStale.Inc()
	}
	if ev.Snapshot == nil {
		// Stale before the first frame: flag whatever book we have.
		if book, ok := m.books[ev.Symbol]; ok {
			copied := *book
			copied.Stale = true
			m.books[ev.Symbol] = &copied
		}
		return
	}
	m.books[ev.Snapshot.Symbol] = ev.Snapshot
}

// evaluate runs one cycle: freeze the composite, derive metrics, feed the
// alert engine, publish.
func (m *Monitor) evaluate() {
	if m.account == nil {
		return
	}

	marks := make(map[string]risk.MarkPrice, len(m.books))
	for symbol, book := range m.books {
		if mid := book.MidPrice(); mid > 0 {
			marks[symbol] = risk.MarkPrice{Price: mid, Stale: book.Stale}
		}
	}

	m.seq++
	snap := risk.Calculate(m.account, m.positions, marks, time.Now())
	snap.Sequence = m.seq

	raised := m.engine.Evaluate(m.seq, snap)
	for _, a := range raised {
		m.metrics.alertRaised(int(a.Level))
	}

	m.metrics.Evaluations.Inc()
	m.metrics.MarginRatio.Set(snap.MarginRatio)
	m.metrics.Equity.Set(snap.Equity)
	m.metrics.OpenPositions.Set(float64(len(snap.Positions)))

	published := make(map[string]*models.Position, len(m.positions))
	for _, pos := range m.positions {
		published[pos.PositionID] = pos
	}

	m.mu.Lock()
	m.latest = snap
	m.published = published
	m.mu.Unlock()
}

// Snapshot returns the last published risk snapshot, nil before the first
// successful cycle.
func (m *Monitor) Snapshot() *models.RiskSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// Alerts returns the active alerts in display order.
func (m *Monitor) Alerts() []models.Alert {
	return m.engine.Alerts()
}

// DismissAlert removes an alert by ID, returning the dismissed alert.
func (m *Monitor) DismissAlert(id string) (*models.Alert, bool) {
	return m.engine.Dismiss(id)
}

// OpenPosition implements dispatch.PositionLookup against the latest
// published snapshot.
func (m *Monitor) OpenPosition(positionID string) (*models.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.published[positionID]
	return pos, ok
}

// Positions lists the open positions from the latest published snapshot.
func (m *Monitor) Positions() []*models.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Position, 0, len(m.published))
	for _, pos := range m.published {
		out = append(out, pos)
	}
	return out
}
