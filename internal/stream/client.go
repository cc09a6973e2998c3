package stream

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/triarb/engine/infra/breakers"
)

// Host defaults per spec §6.
const (
	MainnetHost = "stream.binance.com:9443"
	TestnetHost = "testnet.binance.vision:443"
)

// Config parameterizes a Client.
type Config struct {
	Host string // defaults to MainnetHost

	// StaleTimeout is how long without a message before the state
	// machine transitions to Stale and forces a reconnect.
	StaleTimeout time.Duration

	AutoReconnect  bool
	ReconnectBase  time.Duration
	ReconnectCap   time.Duration
	HandshakeTimeout time.Duration
}

// DefaultConfig matches the spec's defaults: 30s stale timeout,
// 100ms base backoff doubling up to a 30s cap.
func DefaultConfig() Config {
	return Config{
		Host:             MainnetHost,
		StaleTimeout:     30 * time.Second,
		AutoReconnect:    true,
		ReconnectBase:    100 * time.Millisecond,
		ReconnectCap:     30 * time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Client owns exactly one secure full-duplex session to the exchange
// feed. All callback invocations and all symbol/table/risk/detector
// side effects driven from those callbacks happen synchronously on
// the goroutine running Run — the ingress thread.
type Client struct {
	cfg      Config
	handlers Handlers

	mu            sync.Mutex
	state         State
	conn          *websocket.Conn
	subscriptions []string
	lastDataTime  time.Time

	running int32

	breaker        *breakers.Breaker
	replayLimiter  *rate.Limiter
	reconnectTries int
}

// New constructs a Client. The circuit breaker trips after repeated
// consecutive connect failures and forces a longer cool-off on top of
// the per-attempt exponential back-off, so a persistently unreachable
// exchange doesn't spin the reconnect loop at the back-off cap
// forever without a wider pause.
func New(cfg Config, handlers Handlers) *Client {
	if cfg.Host == "" {
		cfg.Host = MainnetHost
	}
	return &Client{
		cfg:           cfg,
		handlers:      handlers,
		state:         Disconnected,
		breaker:       breakers.New("exchange-stream", 5, 60*time.Second),
		replayLimiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
}

// streamPath builds the combined-stream path for a set of stream
// names, or the single-stream path when exactly one is given.
func streamPath(streamNames []string) string {
	if len(streamNames) == 1 {
		return "/ws/" + streamNames[0]
	}
	return "/stream?streams=" + strings.Join(streamNames, "/")
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// IsHealthy is true iff connected and a message has arrived within
// timeoutSeconds.
func (c *Client) IsHealthy(timeoutSeconds float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Connected && c.state != Receiving {
		return false
	}
	if c.lastDataTime.IsZero() {
		return false
	}
	return time.Since(c.lastDataTime).Seconds() < timeoutSeconds
}

// Run dials the exchange with the given stream names, replays
// subscriptions on reconnect, and blocks reading messages until ctx
// is cancelled or Disconnect is called. It is meant to be the body of
// the ingress goroutine.
func (c *Client) Run(ctx context.Context, streamNames []string) error {
	c.mu.Lock()
	c.subscriptions = append([]string(nil), streamNames...)
	c.mu.Unlock()

	atomic.StoreInt32(&c.running, 1)
	defer atomic.StoreInt32(&c.running, 0)

	attempt := 0
	reconnected := false
	for atomic.LoadInt32(&c.running) == 1 {
		var err error
		if reconnected {
			err = c.receiveLoop(ctx) // tryReconnect already dialed
		} else {
			err = c.connectAndReceive(ctx)
		}
		reconnected = false
		if err == nil {
			return nil // ctx cancelled cleanly
		}
		if atomic.LoadInt32(&c.running) == 0 {
			return nil // Disconnect was called
		}
		if !c.cfg.AutoReconnect {
			return err
		}

		attempt++
		backoff := c.backoffFor(attempt)
		if c.handlers.OnError != nil {
			c.handlers.OnError(err.Error())
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		success := c.tryReconnect(ctx, streamNames)
		if c.handlers.OnReconnect != nil {
			c.handlers.OnReconnect(attempt, success)
		}
		if success {
			attempt = 0
			reconnected = true
		}
	}
	return nil
}

func (c *Client) backoffFor(attempt int) time.Duration {
	d := c.cfg.ReconnectBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.cfg.ReconnectCap {
			return c.cfg.ReconnectCap
		}
	}
	if d > c.cfg.ReconnectCap {
		d = c.cfg.ReconnectCap
	}
	return d
}

func (c *Client) tryReconnect(ctx context.Context, streamNames []string) bool {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.dial(ctx, streamNames)
	})
	return err == nil
}

func (c *Client) dial(ctx context.Context, streamNames []string) error {
	c.setState(Connecting)

	u := url.URL{Scheme: "wss", Host: c.cfg.Host, Path: streamPath(streamNames)}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = c.cfg.HandshakeTimeout

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if c.handlers.OnConnect != nil {
			c.handlers.OnConnect(false)
		}
		return fmt.Errorf("stream connect failed: %w", err)
	}

	c.replayLimiter.Wait(ctx) // bound how fast a flapping session replays subscriptions

	c.mu.Lock()
	c.conn = conn
	c.lastDataTime = time.Now()
	c.mu.Unlock()
	c.setState(Connected)

	if c.handlers.OnConnect != nil {
		c.handlers.OnConnect(true)
	}
	return nil
}

func (c *Client) connectAndReceive(ctx context.Context) error {
	if err := c.dial(ctx, c.subscriptions); err != nil {
		return err
	}
	return c.receiveLoop(ctx)
}

func (c *Client) receiveLoop(ctx context.Context) error {
	c.setState(Receiving)
	staleTicker := time.NewTicker(c.cfg.StaleTimeout / 3)
	defer staleTicker.Stop()

	msgCh := make(chan []byte, 256)
	errCh := make(chan error, 1)

	go func() {
		for {
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				errCh <- fmt.Errorf("connection closed")
				return
			}
			_, data, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			msgCh <- data
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.closeConn()
			return nil
		case err := <-errCh:
			c.closeConn()
			return fmt.Errorf("stream read failed: %w", err)
		case data := <-msgCh:
			c.mu.Lock()
			c.lastDataTime = time.Now()
			c.mu.Unlock()
			if err := routeMessage(data, c.handlers); err != nil {
				log.Warn().Err(err).Msg("dropping malformed market-data message")
			}
		case <-staleTicker.C:
			if !c.IsHealthy(c.cfg.StaleTimeout.Seconds()) {
				c.setState(Stale)
				c.closeConn()
				return fmt.Errorf("stream stale: no data within %s", c.cfg.StaleTimeout)
			}
		}
	}
}

func (c *Client) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	c.setState(Disconnected)
}

// Disconnect stops the ingress loop; Run returns once the underlying
// poll observes the flag (up to one receive-loop iteration).
func (c *Client) Disconnect() {
	atomic.StoreInt32(&c.running, 0)
	c.closeConn()
}
