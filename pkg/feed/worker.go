package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"

	"github.com/tradepulse/riskcore/pkg/models"
)

// Event is what a feed worker publishes into the evaluation queue. A
// stale event carries the last snapshot re-flagged, never a silently
// frozen one.
type Event struct {
	Symbol   string
	Snapshot *models.DepthSnapshot
	Stale    bool
}

type subscribeRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// worker owns the websocket subscription for one symbol. It reconnects
// with exponential backoff and, after a reconnect, re-emits nothing until
// the next full frame arrives.
type worker struct {
	symbol     string
	url        string
	maxLevels  int
	staleAfter time.Duration
	out        chan<- Event
	logger     *logrus.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func newWorker(symbol, url string, maxLevels int, staleAfter time.Duration, out chan<- Event, logger *logrus.Logger) *worker {
	return &worker{
		symbol:     symbol,
		url:        url,
		maxLevels:  maxLevels,
		staleAfter: staleAfter,
		out:        out,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

func (w *worker) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	w.cancel = cancel
	go w.run(ctx)
}

func (w *worker) stop() {
	if w.cancel != nil {
		w.cancel()
	}
	<-w.done
}

func (w *worker) run(ctx context.Context) {
	defer close(w.done)

	b := &backoff.Backoff{
		Min:    time.Second,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := w.connect(ctx)
		if err != nil {
			d := b.Duration()
			w.logger.WithError(err).WithFields(logrus.Fields{
				"symbol":   w.symbol,
				"retry_in": d,
			}).Error("Depth feed connect failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(d):
			}
			continue
		}
		b.Reset()

		w.logger.WithField("symbol", w.symbol).Info("Depth feed connected")
		w.consume(ctx, conn)
		conn.Close()
	}
}

func (w *worker) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to depth feed: %w", err)
	}

	sub := subscribeRequest{
		Op:   "subscribe",
		Args: []string{"depth:" + w.symbol},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe %s: %w", w.symbol, err)
	}

	return conn, nil
}

// consume reads frames until the connection dies or the worker stops. It
// raises a stale event when no frame arrives within the staleness window;
// the risk display must show the book as stale rather than keep quietly
// rendering an old one.
func (w *worker) consume(ctx context.Context, conn *websocket.Conn) {
	// frames is buffered so a reader mid-send when consume exits on a ping
	// failure can park its frame and reach the closed-conn read error
	// instead of blocking until worker shutdown.
	frames := make(chan []byte, 1)
	readErr := make(chan error, 1)

	go func() {
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	staleTimer := time.NewTimer(w.staleAfter)
	defer staleTimer.Stop()

	var last *models.DepthSnapshot

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-readErr:
			w.logger.WithError(err).WithField("symbol", w.symbol).Warn("Depth feed read failed, reconnecting")
			return

		case <-pingTicker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				w.logger.WithError(err).WithField("symbol", w.symbol).Warn("Depth feed ping failed, reconnecting")
				return
			}

		case <-staleTimer.C:
			stale := last
			if stale != nil {
				copied := *stale
				copied.Stale = true
				stale = &copied
			}
			w.logger.WithFields(logrus.Fields{
				"symbol":      w.symbol,
				"stale_after": w.staleAfter,
			}).Warn("Depth feed stale")
			w.emit(ctx, Event{Symbol: w.symbol, Snapshot: stale, Stale: true})
			staleTimer.Reset(w.staleAfter)

		case payload := <-frames:
			msg, err := decodeDepthMessage(payload)
			if err != nil {
				w.logger.WithError(err).WithField("symbol", w.symbol).Debug("Skipping undecodable frame")
				continue
			}
			if msg.Type != "depth" || msg.Symbol != w.symbol {
				continue
			}

			snap, err := normalizeDepth(msg, w.maxLevels)
			if err != nil {
				w.logger.WithError(err).WithField("symbol", w.symbol).Warn("Skipping malformed depth frame")
				continue
			}

			last = snap
			if !staleTimer.Stop() {
				select {
				case <-staleTimer.C:
				default:
				}
			}
			staleTimer.Reset(w.staleAfter)

			w.emit(ctx, Event{Symbol: w.symbol, Snapshot: snap})
		}
	}
}

func (w *worker) emit(ctx context.Context, ev Event) {
	select {
	case w.out <- ev:
	case <-ctx.Done():
	}
}
