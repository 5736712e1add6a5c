package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"meridian/internal/adapters/ledger"
	"meridian/pkg/logger"
	"meridian/pkg/reconnect"
)

// subscribeFrame is sent after dialing to select an event stream
type subscribeFrame struct {
	Method string `json:"method"`
	Stream string `json:"stream"`
}

// SubscribeEvents opens a websocket subscription for one event stream and
// returns a channel of decoded events. The reader goroutine reconnects with
// backoff on failure and resubscribes; it closes the channel once ctx is
// cancelled or the reconnect circuit opens for good.
func (c *Client) SubscribeEvents(ctx context.Context, stream string) (<-chan ledger.Event, error) {
	events := make(chan ledger.Event, 64)

	mgr := reconnect.NewManager(reconnect.Config{
		MinBackoff:       time.Second,
		MaxBackoff:       time.Minute,
		HeartbeatTimeout: 5 * time.Minute, // chains can be quiet for long stretches
	}, c.log.With("stream", stream))

	go c.runStream(ctx, stream, events, mgr)

	return events, nil
}

func (c *Client) runStream(ctx context.Context, stream string, events chan<- ledger.Event, mgr *reconnect.Manager) {
	defer close(events)

	log := c.log.With("stream", stream)

	for {
		if ctx.Err() != nil {
			log.Info("Event stream stopping")
			return
		}

		if !mgr.ShouldRetry() {
			log.Errorw("Event stream giving up, reconnect circuit open")
			return
		}

		conn, err := c.dialStream(ctx, stream)
		if err != nil {
			mgr.RecordFailure()
			select {
			case <-ctx.Done():
				return
			case <-time.After(mgr.GetBackoff()):
			}
			continue
		}

		mgr.RecordSuccess()
		log.Info("Event stream connected")

		c.readLoop(ctx, conn, events, mgr, log)
		_ = conn.Close()
	}
}

func (c *Client) dialStream(ctx context.Context, stream string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, c.cfg.WSURL, nil)
	if err != nil {
		return nil, err
	}

	if err := conn.WriteJSON(subscribeFrame{Method: "subscribe", Stream: stream}); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

// readLoop reads until the connection breaks or ctx is cancelled. A frame
// that fails to decode is logged and skipped; it never kills the stream.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, events chan<- ledger.Event, mgr *reconnect.Manager, log *logger.Logger) {
	// Unblock ReadMessage on shutdown
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Warnw("Event stream read failed", "error", err)
			}
			return
		}

		mgr.RecordMessageReceived()

		var event ledger.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			log.Warnw("Dropping undecodable event frame", "error", err)
			continue
		}

		select {
		case events <- event:
		case <-ctx.Done():
			return
		}
	}
}
