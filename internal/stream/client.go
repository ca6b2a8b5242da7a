package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"market-tick-lab/internal/domain"
)

// ClientConfig configures WebSocket stream behavior.
type ClientConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential backoff between attempts.
	MaxReconnectDelay time.Duration
	// MaxRetries bounds consecutive failed reconnects before the symbol
	// transitions to failed. Successful reads reset the counter.
	MaxRetries int
	// ReadTimeout is the per-message read deadline.
	ReadTimeout time.Duration
	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration
	// ChannelBuffer sizes the tick channel handed to subscribers.
	ChannelBuffer int
}

// DefaultClientConfig returns default stream configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		MaxRetries:        5,
		ReadTimeout:       60 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		ChannelBuffer:     256,
	}
}

// Client implements Source over the exchange trade stream using
// gorilla/websocket. Each subscription owns its own connection, so a
// stalled symbol never affects another.
type Client struct {
	endpoint string // base endpoint, e.g. wss://fstream.binance.com/ws
	config   ClientConfig
	onStatus StatusFunc
	logger   *log.Logger
}

// ClientOptions contains configuration for creating a Client.
type ClientOptions struct {
	Endpoint string
	Config   *ClientConfig
	OnStatus StatusFunc
	Logger   *log.Logger
}

// NewClient creates a new stream client.
func NewClient(opts ClientOptions) *Client {
	cfg := DefaultClientConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		endpoint: opts.Endpoint,
		config:   cfg,
		onStatus: opts.OnStatus,
		logger:   logger,
	}
}

var _ Source = (*Client)(nil)

// Subscribe opens the trade stream for a symbol and returns its tick
// channel. Gaps during reconnects are not replayed: a reconnect resumes
// from the live stream, and the gap is a reportable data-quality property.
func (c *Client) Subscribe(ctx context.Context, symbol string) (<-chan domain.Tick, error) {
	if symbol == "" {
		return nil, fmt.Errorf("subscribe: empty symbol")
	}

	ticks := make(chan domain.Tick, c.config.ChannelBuffer)
	go c.run(ctx, symbol, ticks)
	return ticks, nil
}

// run drives one symbol's connect/read/reconnect loop until the context
// is cancelled or the retry budget is exhausted.
func (c *Client) run(ctx context.Context, symbol string, ticks chan<- domain.Tick) {
	defer close(ticks)

	retries := 0
	delay := c.config.ReconnectDelay

	for {
		if ctx.Err() != nil {
			c.notify(symbol, domain.StreamStopped)
			return
		}

		conn, err := c.dial(ctx, symbol)
		if err != nil {
			retries++
			c.logger.Printf("[stream] %s dial failed (attempt %d/%d): %v", symbol, retries, c.config.MaxRetries, err)
			if retries >= c.config.MaxRetries {
				c.notify(symbol, domain.StreamFailed)
				return
			}
			c.notify(symbol, domain.StreamDisconnected)
			if !sleepCtx(ctx, delay) {
				c.notify(symbol, domain.StreamStopped)
				return
			}
			delay = nextDelay(delay, c.config.MaxReconnectDelay)
			continue
		}

		c.notify(symbol, domain.StreamConnected)

		// Close the connection on cancellation so the blocked read returns.
		stop := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-stop:
			}
		}()

		err = c.readLoop(ctx, conn, symbol, ticks, &retries, &delay)
		close(stop)
		conn.Close()

		if ctx.Err() != nil {
			c.notify(symbol, domain.StreamStopped)
			return
		}

		retries++
		c.logger.Printf("[stream] %s read loop ended (attempt %d/%d): %v", symbol, retries, c.config.MaxRetries, err)
		if retries >= c.config.MaxRetries {
			c.notify(symbol, domain.StreamFailed)
			return
		}
		c.notify(symbol, domain.StreamDisconnected)
		if !sleepCtx(ctx, delay) {
			c.notify(symbol, domain.StreamStopped)
			return
		}
		delay = nextDelay(delay, c.config.MaxReconnectDelay)
	}
}

func (c *Client) dial(ctx context.Context, symbol string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.config.HandshakeTimeout}
	url := fmt.Sprintf("%s/%s@trade", c.endpoint, symbol)
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}
	return conn, nil
}

// readLoop reads and decodes trade frames until the connection breaks.
// A successfully decoded tick resets the retry counter and backoff.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, symbol string, ticks chan<- domain.Tick, retries *int, delay *time.Duration) error {
	for {
		if c.config.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg tradeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Printf("[stream] %s decode failed: %v", symbol, err)
			continue
		}
		if msg.EventType != "trade" {
			continue
		}

		tick, err := msg.toTick()
		if err != nil {
			c.logger.Printf("[stream] %s bad trade payload: %v", symbol, err)
			continue
		}

		*retries = 0
		*delay = c.config.ReconnectDelay

		select {
		case ticks <- tick:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) notify(symbol string, status domain.StreamStatus) {
	if c.onStatus != nil {
		c.onStatus(symbol, status)
	}
}

// sleepCtx waits for d or context cancellation; returns false if cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// nextDelay doubles the backoff up to the cap.
func nextDelay(d, max time.Duration) time.Duration {
	d *= 2
	if d > max {
		return max
	}
	return d
}
