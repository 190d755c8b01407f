package alert

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepulse/riskcore/pkg/models"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func snapshotWith(ratio float64, pairs ...models.PairKey) *models.RiskSnapshot {
	snap := &models.RiskSnapshot{AccountID: "acct-1", MarginRatio: ratio}
	for _, p := range pairs {
		snap.Positions = append(snap.Positions, models.PositionRisk{
			Symbol: p.Symbol,
			Side:   p.Side,
		})
	}
	return snap
}

var btcLong = models.PairKey{Symbol: "BTCUSDT", Side: models.PositionSideLong}

func TestTierFor(t *testing.T) {
	tests := []struct {
		ratio float64
		want  models.AlertLevel
	}{
		{0, models.AlertLevelNone},
		{69.99, models.AlertLevelNone},
		{70, models.AlertTier70},
		{79.99, models.AlertTier70},
		{80, models.AlertTier80},
		{90, models.AlertTier90},
		{99.99, models.AlertTier90},
		{100, models.AlertTier100},
		{250, models.AlertTier100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierFor(tt.ratio), "ratio %v", tt.ratio)
	}
}

func TestEngineTierWalk(t *testing.T) {
	// Ratio sequence 65, 72, 95, 100, 60: quiet, then tier jumps without
	// passing intermediate bands, then the alert persists through the dip.
	e := NewEngine(testLogger())

	e.Evaluate(1, snapshotWith(65, btcLong))
	assert.Empty(t, e.Alerts())

	e.Evaluate(2, snapshotWith(72, btcLong))
	alerts := e.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTier70, alerts[0].Level)

	e.Evaluate(3, snapshotWith(95, btcLong))
	alerts = e.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTier90, alerts[0].Level)

	e.Evaluate(4, snapshotWith(100, btcLong))
	alerts = e.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTier100, alerts[0].Level)

	// Risk reduction does not clear the alert.
	e.Evaluate(5, snapshotWith(60, btcLong))
	alerts = e.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTier100, alerts[0].Level)
}

func TestEngineReplaceKeepsSingleAlertPerPair(t *testing.T) {
	e := NewEngine(testLogger())

	raised := e.Evaluate(1, snapshotWith(75, btcLong))
	require.Len(t, raised, 1)
	id := raised[0].ID

	raised = e.Evaluate(2, snapshotWith(85, btcLong))
	require.Len(t, raised, 1)
	assert.Equal(t, id, raised[0].ID, "replacement keeps the pair's alert identity")

	alerts := e.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTier80, alerts[0].Level)

	// Same tier on the next cycle raises nothing new.
	raised = e.Evaluate(3, snapshotWith(86, btcLong))
	assert.Empty(t, raised)
}

func TestEngineStaleEvaluationDropped(t *testing.T) {
	e := NewEngine(testLogger())

	e.Evaluate(5, snapshotWith(95, btcLong))

	// A slower evaluation from an earlier cycle arrives late with a lower
	// tier; last-write-wins is by evaluation time, not arrival time.
	e.Evaluate(3, snapshotWith(72, btcLong))

	alerts := e.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTier90, alerts[0].Level)
}

func TestEngineDismiss(t *testing.T) {
	e := NewEngine(testLogger())

	raised := e.Evaluate(1, snapshotWith(75, btcLong))
	require.Len(t, raised, 1)

	dismissed, ok := e.Dismiss(raised[0].ID)
	require.True(t, ok)
	assert.True(t, dismissed.Dismissed)
	assert.Equal(t, raised[0].ID, dismissed.ID)
	assert.Empty(t, e.Alerts())

	_, ok = e.Dismiss(raised[0].ID)
	assert.False(t, ok, "second dismiss is a no-op")

	// An in-flight evaluation older than the dismissal cannot resurrect it.
	e.Evaluate(1, snapshotWith(75, btcLong))
	assert.Empty(t, e.Alerts())

	// A genuinely fresh cycle above the threshold raises again.
	e.Evaluate(2, snapshotWith(75, btcLong))
	assert.Len(t, e.Alerts(), 1)
}

func TestEnginePositionCloseRemovesAlert(t *testing.T) {
	ethShort := models.PairKey{Symbol: "ETHUSDT", Side: models.PositionSideShort}
	e := NewEngine(testLogger())

	e.Evaluate(1, snapshotWith(85, btcLong, ethShort))
	assert.Len(t, e.Alerts(), 2)

	// BTC long closes; its alert goes with it.
	e.Evaluate(2, snapshotWith(85, ethShort))
	alerts := e.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "ETHUSDT", alerts[0].Symbol)
}

func TestEngineClosedPairIgnoresPredatingEvaluation(t *testing.T) {
	e := NewEngine(testLogger())

	e.Evaluate(4, snapshotWith(95, btcLong))
	require.Len(t, e.Alerts(), 1)

	e.Evaluate(6, snapshotWith(95))
	assert.Empty(t, e.Alerts())

	// A slower evaluation captured while the position was still open lands
	// after the closure; it must not bring the alert back.
	raised := e.Evaluate(5, snapshotWith(95, btcLong))
	assert.Empty(t, raised)
	assert.Empty(t, e.Alerts())
}

func TestEngineStaleEvaluationCannotCloseNewerPair(t *testing.T) {
	e := NewEngine(testLogger())

	e.Evaluate(5, snapshotWith(95, btcLong))
	require.Len(t, e.Alerts(), 1)

	// A stale evaluation captured before the position opened carries an
	// empty book; it must not remove the newer alert.
	e.Evaluate(3, snapshotWith(95))
	alerts := e.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTier90, alerts[0].Level)
}

func TestEngineDowngradeTracksCurrentTier(t *testing.T) {
	e := NewEngine(testLogger())

	e.Evaluate(1, snapshotWith(100, btcLong))
	require.Equal(t, models.AlertTier100, e.Alerts()[0].Level)

	// A non-quiet drop re-levels the alert to the current tier; only a drop
	// all the way under 70 leaves the old alert standing.
	e.Evaluate(2, snapshotWith(72, btcLong))
	alerts := e.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTier70, alerts[0].Level)
}

func TestEngineOrderingWithinTier(t *testing.T) {
	ethLong := models.PairKey{Symbol: "ETHUSDT", Side: models.PositionSideLong}
	solLong := models.PairKey{Symbol: "SOLUSDT", Side: models.PositionSideLong}

	e := NewEngine(testLogger())
	base := time.Unix(1700000000, 0)
	step := 0
	e.nowFn = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	// Pairs come under pressure one cycle apart; display keeps the oldest
	// alert first within the tier.
	e.Evaluate(1, snapshotWith(95, ethLong))
	e.Evaluate(2, snapshotWith(95, ethLong, solLong))
	e.Evaluate(3, snapshotWith(95, ethLong, solLong, btcLong))

	alerts := e.Alerts()
	require.Len(t, alerts, 3)
	assert.Equal(t, "ETHUSDT", alerts[0].Symbol)
	assert.Equal(t, "SOLUSDT", alerts[1].Symbol)
	assert.Equal(t, "BTCUSDT", alerts[2].Symbol)
}

func TestAlertsSortLevelDescThenOldest(t *testing.T) {
	ethLong := models.PairKey{Symbol: "ETHUSDT", Side: models.PositionSideLong}
	solLong := models.PairKey{Symbol: "SOLUSDT", Side: models.PositionSideLong}
	base := time.Unix(1700000000, 0)

	e := NewEngine(testLogger())
	e.pairs[btcLong] = &pairState{alert: &models.Alert{
		ID: "BTCUSDT:long", Symbol: "BTCUSDT", Level: models.AlertTier70, CreatedAt: base,
	}}
	e.pairs[ethLong] = &pairState{alert: &models.Alert{
		ID: "ETHUSDT:long", Symbol: "ETHUSDT", Level: models.AlertTier100, CreatedAt: base.Add(2 * time.Second),
	}}
	e.pairs[solLong] = &pairState{alert: &models.Alert{
		ID: "SOLUSDT:long", Symbol: "SOLUSDT", Level: models.AlertTier100, CreatedAt: base.Add(time.Second),
	}}

	alerts := e.Alerts()
	require.Len(t, alerts, 3)
	assert.Equal(t, "SOLUSDT", alerts[0].Symbol, "oldest critical alert first")
	assert.Equal(t, "ETHUSDT", alerts[1].Symbol)
	assert.Equal(t, "BTCUSDT", alerts[2].Symbol)
}

func TestEngineMessages(t *testing.T) {
	assert.Equal(t, "critical liquidation risk", models.AlertTier100.Message())
	assert.Equal(t, "very close to liquidation", models.AlertTier90.Message())
	assert.Equal(t, "high margin utilization", models.AlertTier80.Message())
	assert.Equal(t, "elevated margin utilization", models.AlertTier70.Message())
}
