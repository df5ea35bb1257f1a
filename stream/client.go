package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"github.com/jonwraymond/streamcore/observe"
)

// DialFunc establishes a websocket connection. The default uses a
// gorilla/websocket Dialer; tests substitute their own.
type DialFunc func(ctx context.Context, url string, header http.Header) (*websocket.Conn, error)

// ClientConfig configures a websocket client.
type ClientConfig struct {
	// URL is the websocket endpoint (ws:// or wss://).
	URL string

	// Header is sent with the handshake request.
	Header http.Header

	// HandshakeTimeout bounds the dial handshake.
	// Default: 10 seconds
	HandshakeTimeout time.Duration

	// PingInterval is the keepalive ping cadence. Zero uses the default,
	// negative disables pings.
	// Default: 20 seconds
	PingInterval time.Duration

	// PongWait is how long a connection may stay silent before the read
	// loop treats it as dead.
	// Default: 60 seconds
	PongWait time.Duration

	// WriteTimeout bounds each outbound frame write.
	// Default: 10 seconds
	WriteTimeout time.Duration

	// MaxMessageSize caps inbound frame size.
	// Default: 1 MiB
	MaxMessageSize int64

	// ReconnectInitialDelay is the first reconnect backoff step.
	// Default: 500ms
	ReconnectInitialDelay time.Duration

	// ReconnectMaxDelay caps the reconnect backoff.
	// Default: 30 seconds
	ReconnectMaxDelay time.Duration

	// Dial overrides the transport dialer.
	Dial DialFunc

	// Logger receives connection lifecycle logs. Nil discards them.
	Logger observe.Logger
}

// Client owns exactly one physical websocket connection to one endpoint. It
// reconnects automatically with bounded backoff after unexpected disconnects
// and notifies the registered OnReconnect handler, but it knows nothing about
// logical subscriptions. That is the Manager's job.
type Client struct {
	config ClientConfig
	logger observe.Logger

	onMessage   func(data []byte)
	onError     func(err error)
	onReconnect func()

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	closedCh  chan struct{}
}

// NewClient creates a new websocket client. Connect must be called before
// any traffic flows.
func NewClient(config ClientConfig) *Client {
	// Apply defaults
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = 10 * time.Second
	}
	if config.PingInterval == 0 {
		config.PingInterval = 20 * time.Second
	}
	if config.PongWait <= 0 {
		config.PongWait = 60 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = 1 << 20
	}
	if config.ReconnectInitialDelay <= 0 {
		config.ReconnectInitialDelay = 500 * time.Millisecond
	}
	if config.ReconnectMaxDelay <= 0 {
		config.ReconnectMaxDelay = 30 * time.Second
	}

	logger := config.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	return &Client{
		config:   config,
		logger:   logger,
		closedCh: make(chan struct{}),
	}
}

// OnMessage registers the inbound frame handler. Must be set before Connect.
func (c *Client) OnMessage(fn func(data []byte)) {
	c.mu.Lock()
	c.onMessage = fn
	c.mu.Unlock()
}

// OnError registers the transport error handler. Must be set before Connect.
func (c *Client) OnError(fn func(err error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// OnReconnect registers the handler fired after each successful automatic
// reconnection. Must be set before Connect.
func (c *Client) OnReconnect(fn func()) {
	c.mu.Lock()
	c.onReconnect = fn
	c.mu.Unlock()
}

// Connect establishes the connection and starts the read and keepalive
// loops. It returns once the transport handshake completes. Connecting an
// already connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClientClosed
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.logger.Info(ctx, "websocket connected", observe.Field{Key: "url", Value: c.config.URL})

	go c.run(conn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn
	var err error

	if c.config.Dial != nil {
		conn, err = c.config.Dial(ctx, c.config.URL, c.config.Header)
	} else {
		dialer := websocket.Dialer{HandshakeTimeout: c.config.HandshakeTimeout}
		conn, _, err = dialer.DialContext(ctx, c.config.URL, c.config.Header)
	}
	if err != nil {
		return nil, err
	}

	conn.SetReadLimit(c.config.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})
	return conn, nil
}

// run owns one established connection: it reads frames until the connection
// breaks, then hands off to the reconnect loop.
func (c *Client) run(conn *websocket.Conn) {
	stopPing := make(chan struct{})
	if c.config.PingInterval > 0 {
		go c.pingLoop(conn, stopPing)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			close(stopPing)
			_ = conn.Close()

			c.mu.Lock()
			c.connected = false
			c.conn = nil
			closed := c.closed
			onError := c.onError
			c.mu.Unlock()

			if closed {
				return
			}

			c.logger.Warn(context.Background(), "websocket read failed",
				observe.Field{Key: "url", Value: c.config.URL},
				observe.Field{Key: "error", Value: err.Error()},
			)
			if onError != nil {
				onError(err)
			}

			c.reconnect()
			return
		}

		c.mu.Lock()
		onMessage := c.onMessage
		c.mu.Unlock()
		if onMessage != nil {
			onMessage(data)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-c.closedCh:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// reconnect dials with exponential backoff until it succeeds or the client
// is closed, then fires the reconnected notification and resumes reading.
func (c *Client) reconnect() {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.ReconnectInitialDelay
	bo.MaxInterval = c.config.ReconnectMaxDelay

	for attempt := 1; ; attempt++ {
		delay := bo.NextBackOff()

		select {
		case <-c.closedCh:
			return
		case <-time.After(delay):
		}

		conn, err := c.dial(context.Background())
		if err != nil {
			c.logger.Warn(context.Background(), "websocket reconnect failed",
				observe.Field{Key: "url", Value: c.config.URL},
				observe.Field{Key: "attempt", Value: attempt},
				observe.Field{Key: "error", Value: err.Error()},
			)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.connected = true
		onReconnect := c.onReconnect
		c.mu.Unlock()

		c.logger.Info(context.Background(), "websocket reconnected",
			observe.Field{Key: "url", Value: c.config.URL},
			observe.Field{Key: "attempts", Value: attempt},
		)

		if onReconnect != nil {
			onReconnect()
		}

		go c.run(conn)
		return
	}
}

// Send writes one frame. It fails with ErrNotConnected while the connection
// is down; queue-and-replay across reconnects is the Manager's concern.
func (c *Client) Send(ctx context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	if !c.connected || c.conn == nil {
		return ErrNotConnected
	}

	deadline := time.Now().Add(c.config.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// IsConnected reports whether a live connection exists right now.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close tears down the connection and stops any reconnect attempts.
// It is idempotent and terminal.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.connected = false
	close(c.closedCh)
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		return conn.Close()
	}
	return nil
}
