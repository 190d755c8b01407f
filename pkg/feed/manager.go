package feed

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Manager owns one feed worker per subscribed symbol. Subscriptions are
// reference counted on "symbols with open positions": the worker's
// lifecycle follows the positions, not whatever screen happens to be
// mounted in the UI.
type Manager struct {
	url        string
	maxLevels  int
	staleAfter time.Duration
	logger     *logrus.Logger

	mu      sync.Mutex
	ctx     context.Context
	workers map[string]*workerRef
	out     chan Event
}

type workerRef struct {
	worker *worker
	refs   int
}

func NewManager(ctx context.Context, url string, maxLevels int, staleAfter time.Duration, logger *logrus.Logger) *Manager {
	return &Manager{
		url:        url,
		maxLevels:  maxLevels,
		staleAfter: staleAfter,
		logger:     logger,
		ctx:        ctx,
		workers:    make(map[string]*workerRef),
		out:        make(chan Event, 64),
	}
}

// Events is the serialized stream of depth events across all symbols.
func (m *Manager) Events() <-chan Event {
	return m.out
}

// Acquire subscribes the symbol, starting a worker on the first reference.
func (m *Manager) Acquire(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ref, ok := m.workers[symbol]; ok {
		ref.refs++
		return
	}

	w := newWorker(symbol, m.url, m.maxLevels, m.staleAfter, m.out, m.logger)
	m.workers[symbol] = &workerRef{worker: w, refs: 1}
	w.start(m.ctx)

	m.logger.WithField("symbol", symbol).Info("Subscribed depth feed")
}

// Release drops one reference; the worker stops when the last holder of a
// symbol lets go.
func (m *Manager) Release(symbol string) {
	m.mu.Lock()
	ref, ok := m.workers[symbol]
	if !ok {
		m.mu.Unlock()
		return
	}
	ref.refs--
	if ref.refs > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.workers, symbol)
	m.mu.Unlock()

	ref.worker.stop()
	m.logger.WithField("symbol", symbol).Info("Unsubscribed depth feed")
}

// Close stops every worker.
func (m *Manager) Close() {
	m.mu.Lock()
	refs := make([]*workerRef, 0, len(m.workers))
	for symbol, ref := range m.workers {
		refs = append(refs, ref)
		delete(m.workers, symbol)
	}
	m.mu.Unlock()

	for _, ref := range refs {
		ref.worker.stop()
	}
}
