package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"
)

// WSFeedConfig configures websocket feed behavior.
type WSFeedConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential reconnect backoff.
	MaxReconnectDelay time.Duration
	// ReadTimeout bounds a single read; a silent connection is redialed.
	ReadTimeout time.Duration
	// HandshakeTimeout bounds the dial.
	HandshakeTimeout time.Duration
}

// DefaultWSFeedConfig returns default websocket feed configuration.
func DefaultWSFeedConfig() WSFeedConfig {
	return WSFeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		HandshakeTimeout:  10 * time.Second,
	}
}

// WSFeed streams ticks from an exchange websocket endpoint. Malformed
// messages are dropped and counted, never fatal; connection loss triggers
// reconnect with exponential backoff.
type WSFeed struct {
	endpoint string
	exchange string
	symbols  []string
	cfg      WSFeedConfig
	logger   zerolog.Logger

	dropped int64
}

// NewWSFeed creates a websocket feed for the endpoint. config may be nil.
func NewWSFeed(endpoint, exchange string, symbols []string, config *WSFeedConfig, logger zerolog.Logger) *WSFeed {
	cfg := DefaultWSFeedConfig()
	if config != nil {
		cfg = *config
	}
	return &WSFeed{
		endpoint: endpoint,
		exchange: exchange,
		symbols:  symbols,
		cfg:      cfg,
		logger:   logger.With().Str("component", "ws_feed").Str("endpoint", endpoint).Logger(),
	}
}

// subscribeRequest is sent after every (re)connect.
type subscribeRequest struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

// Run connects and streams ticks into out until the context is cancelled.
func (f *WSFeed) Run(ctx context.Context, out chan<- domain.Tick) error {
	delay := f.cfg.ReconnectDelay

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := f.runConn(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn().Err(err).Dur("retry_in", delay).Msg("feed connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > f.cfg.MaxReconnectDelay {
			delay = f.cfg.MaxReconnectDelay
		}
	}
}

// runConn handles one connection lifetime: dial, subscribe, read loop.
func (f *WSFeed) runConn(ctx context.Context, out chan<- domain.Tick) error {
	dialer := websocket.Dialer{HandshakeTimeout: f.cfg.HandshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// Close the connection when the context ends so the blocked read
	// returns promptly.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sub := subscribeRequest{Op: "subscribe", Symbols: f.symbols}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info().Strs("symbols", f.symbols).Msg("feed connected")

	for {
		if f.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		var msg tickMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			f.dropped++
			f.logger.Debug().Err(err).Msg("malformed feed message dropped")
			continue
		}

		tick, ok := msg.toTick(f.exchange)
		if !ok {
			f.dropped++
			continue
		}

		select {
		case out <- tick:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

var _ Feed = (*WSFeed)(nil)
