package alert

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradepulse/riskcore/pkg/models"
)

// TierFor maps a margin ratio to its alert tier. Bands are lower-bound
// inclusive; anything under 70 is quiet.
func TierFor(marginRatio float64) models.AlertLevel {
	switch {
	case marginRatio >= 100:
		return models.AlertTier100
	case marginRatio >= 90:
		return models.AlertTier90
	case marginRatio >= 80:
		return models.AlertTier80
	case marginRatio >= 70:
		return models.AlertTier70
	default:
		return models.AlertLevelNone
	}
}

type pairState struct {
	alert   *models.Alert
	lastSeq uint64
}

// Engine keeps at most one active alert per (symbol, side) pair and applies
// evaluation results in sequence order, so a slow evaluation can never
// clobber a newer one with a stale tier. Alerts are not auto-cleared when
// the ratio drops back under 70: they stay until dismissed or until the
// position closes. That is deliberate policy, not an accident of state.
type Engine struct {
	mu     sync.RWMutex
	pairs  map[models.PairKey]*pairState
	maxSeq uint64
	logger *logrus.Logger
	nowFn  func() time.Time
}

func NewEngine(logger *logrus.Logger) *Engine {
	return &Engine{
		pairs:  make(map[models.PairKey]*pairState),
		logger: logger,
		nowFn:  time.Now,
	}
}

// Evaluate applies one evaluation cycle. seq must be monotonically
// increasing per account; results carrying an older seq for a pair are
// dropped. It returns the alerts that were created or replaced this cycle.
func (e *Engine) Evaluate(seq uint64, snap *models.RiskSnapshot) []models.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	if seq > e.maxSeq {
		e.maxSeq = seq
	}

	tier := TierFor(snap.MarginRatio)

	open := make(map[models.PairKey]bool, len(snap.Positions))
	for _, pr := range snap.Positions {
		open[models.PairKey{Symbol: pr.Symbol, Side: pr.Side}] = true
	}

	// Position closed: drop the alert but keep the pair state as a
	// tombstone carrying the closure seq. An in-flight result that predates
	// the closure then fails the seq check below instead of resurrecting
	// the alert, and a stale result that predates the opening cannot remove
	// a newer alert here.
	for pair, st := range e.pairs {
		if open[pair] || seq <= st.lastSeq {
			continue
		}
		st.lastSeq = seq
		if st.alert != nil {
			st.alert = nil
			e.logger.WithFields(logrus.Fields{
				"symbol": pair.Symbol,
				"side":   pair.Side,
			}).Info("Position closed, removing alert")
		}
	}

	var raised []models.Alert
	for pair := range open {
		st := e.pairs[pair]
		if st == nil {
			st = &pairState{}
			e.pairs[pair] = st
		}
		if seq <= st.lastSeq {
			continue
		}
		st.lastSeq = seq

		if tier == models.AlertLevelNone {
			// Quiet: an existing alert stays put until the user dismisses
			// it or the position closes.
			continue
		}

		if st.alert != nil && st.alert.Level == tier {
			continue
		}

		a := &models.Alert{
			ID:        models.AlertID(pair),
			Level:     tier,
			Symbol:    pair.Symbol,
			Side:      pair.Side,
			Message:   tier.Message(),
			CreatedAt: e.nowFn(),
		}
		st.alert = a
		raised = append(raised, *a)

		e.logger.WithFields(logrus.Fields{
			"symbol":       pair.Symbol,
			"side":         pair.Side,
			"level":        int(tier),
			"margin_ratio": snap.MarginRatio,
		}).Warn(tier.Message())
	}

	return raised
}

// Dismiss removes an alert by ID and returns it flagged as dismissed. The
// pair's sequence floor is raised to the newest evaluation seen, so an
// in-flight older evaluation cannot resurrect the alert it was computed
// against.
func (e *Engine) Dismiss(id string) (*models.Alert, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, st := range e.pairs {
		if st.alert != nil && st.alert.ID == id {
			dismissed := *st.alert
			dismissed.Dismissed = true
			st.alert = nil
			st.lastSeq = e.maxSeq
			return &dismissed, true
		}
	}
	return nil, false
}

// Alerts returns the active alerts ordered for display: highest tier
// first, oldest first within a tier.
func (e *Engine) Alerts() []models.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]models.Alert, 0, len(e.pairs))
	for _, st := range e.pairs {
		if st.alert != nil {
			out = append(out, *st.alert)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level > out[j].Level
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
