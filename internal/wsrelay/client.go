// Package wsrelay binds the relay transport contract to a websocket
// connection. Requests are written as JSON frames; server frames are decoded
// into relay notifications and queued until the host calls Service.
package wsrelay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/roomrelay/roomrelay/internal/relay"
)

var (
	ErrNotConnected     = errors.New("wsrelay: not connected")
	ErrAlreadyConnected = errors.New("wsrelay: already connected")
)

// Config holds the connection settings.
type Config struct {
	URL string

	// ServiceTimeout is the longest the host may go without calling Service
	// before the connection is dropped.
	ServiceTimeout time.Duration
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	DialTimeout    time.Duration
}

// DefaultConfig returns the default timings for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:            url,
		ServiceTimeout: 6 * time.Second,
		PingInterval:   15 * time.Second,
		PongTimeout:    45 * time.Second,
		WriteTimeout:   10 * time.Second,
		DialTimeout:    10 * time.Second,
	}
}

// Client is a relay.Transport over a websocket.
type Client struct {
	cfg    Config
	log    *zap.Logger
	dialer *websocket.Dialer
	queue  relay.Queue

	mu          sync.Mutex
	writeMu     sync.Mutex // serialises all conn writes (ping, requests)
	listener    relay.Listener
	conn        *websocket.Conn
	connecting  bool
	gen         uint64 // bumped on every connect and disconnect
	cancel      context.CancelFunc
	seq         uint64
	lastService time.Time
	clientID    string
}

var _ relay.Transport = (*Client)(nil)

// New creates an unconnected client. A nil logger disables logging.
func New(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultConfig(cfg.URL)
	if cfg.ServiceTimeout <= 0 {
		cfg.ServiceTimeout = def.ServiceTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = def.PongTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	return &Client{
		cfg:    cfg,
		log:    log.With(zap.String("url", cfg.URL)),
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
	}
}

func (c *Client) SetListener(l relay.Listener) {
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
}

// ClientID returns the id sent in the hello of the current connection.
func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// Connect dials in the background and returns immediately. The backend's
// answer, or a connection error, is delivered on a later Service.
func (c *Client) Connect(appID, appVersion, userName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil || c.connecting {
		return ErrAlreadyConnected
	}
	c.gen++
	c.connecting = true
	c.seq = 0
	c.lastService = time.Now()
	c.clientID = uuid.NewString()
	c.queue.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	hello := HelloPayload{AppID: appID, AppVersion: appVersion, UserName: userName, ClientID: c.clientID}
	go c.run(ctx, c.gen, hello)
	return nil
}

// current reports whether gen is still the live connection generation.
// c.mu must be held.
func (c *Client) current(gen uint64) bool {
	return c.gen == gen
}

func (c *Client) run(ctx context.Context, gen uint64, hello HelloPayload) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	conn, _, err := c.dialer.DialContext(dialCtx, c.cfg.URL, nil)
	cancel()
	if err != nil {
		c.log.Warn("ws dial error", zap.Error(err))
		c.fail(gen, nil, relay.StatusExceptionOnConnect)
		return
	}

	// The connection isn't shared yet, so the hello needs no write lock.
	data, err := Encode(MsgHello, 1, hello)
	if err == nil {
		conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
		err = conn.WriteMessage(websocket.TextMessage, data)
	}
	if err != nil {
		c.log.Warn("ws hello failed", zap.Error(err))
		conn.Close()
		c.fail(gen, nil, relay.StatusExceptionOnConnect)
		return
	}

	c.mu.Lock()
	if !c.current(gen) {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.connecting = false
	c.seq = 1
	c.mu.Unlock()
	c.log.Debug("ws connected", zap.String("client_id", hello.ClientID))

	go c.pingLoop(ctx, gen, conn)
	go c.watchdog(ctx, gen, conn)
	c.readLoop(gen, conn)
}

// fail ends connection generation gen and queues a connection error followed
// by relay.Disconnected. It does nothing if gen is no longer current.
func (c *Client) fail(gen uint64, conn *websocket.Conn, code int32) {
	c.mu.Lock()
	if !c.current(gen) {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.conn = nil
	c.connecting = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.queue.Push(relay.ConnectionError{Code: code}, relay.Disconnected{})
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (c *Client) readLoop(gen uint64, conn *websocket.Conn) {
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			code := relay.StatusDisconnectByServer
			var ne interface{ Timeout() bool }
			if errors.As(err, &ne) && ne.Timeout() {
				code = relay.StatusTimeoutDisconnect
			}
			c.log.Debug("ws read ended", zap.Error(err))
			c.fail(gen, conn, code)
			return
		}

		n, _, err := DecodeNotification(data)
		if err != nil {
			c.log.Warn("undecodable frame", zap.Error(err))
			n = MalformedFrame(data, err)
		}

		c.mu.Lock()
		live := c.current(gen)
		if live {
			c.queue.Push(n)
		}
		c.mu.Unlock()
		if !live {
			return
		}
	}
}

// pingLoop sends periodic pings on conn until ctx is cancelled or the
// generation changes.
func (c *Client) pingLoop(ctx context.Context, gen uint64, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			live := c.current(gen)
			c.mu.Unlock()
			if !live {
				return
			}
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// watchdog drops the connection when the host stops calling Service.
func (c *Client) watchdog(ctx context.Context, gen uint64, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.ServiceTimeout / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			idle := time.Since(c.lastService)
			c.mu.Unlock()
			if idle > c.cfg.ServiceTimeout {
				c.log.Warn("service not called in time, disconnecting",
					zap.Duration("idle", idle), zap.Duration("timeout", c.cfg.ServiceTimeout))
				c.fail(gen, conn, relay.StatusTimeoutDisconnect)
				return
			}
		}
	}
}

// Disconnect closes the connection, discards undelivered notifications and
// queues relay.Disconnected.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	if conn == nil && !c.connecting {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.gen++
	c.conn = nil
	c.connecting = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.seq++
	seq := c.seq
	c.queue.Reset()
	c.queue.Push(relay.Disconnected{})
	c.mu.Unlock()

	if conn != nil {
		if data, err := Encode(MsgDisconnect, seq, nil); err == nil {
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			conn.WriteMessage(websocket.TextMessage, data)
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			c.writeMu.Unlock()
		}
		conn.Close()
	}
	c.log.Debug("ws disconnected")
	return nil
}

// Service records host liveness and dispatches queued notifications.
func (c *Client) Service() {
	c.mu.Lock()
	c.lastService = time.Now()
	l := c.listener
	c.mu.Unlock()
	c.queue.DispatchAll(l)
}

func (c *Client) send(typ MessageType, payload any) error {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	data, err := Encode(typ, seq, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", typ, err)
	}
	return nil
}

func (c *Client) SendEvent(code uint8, payload []byte, scope relay.Scope) error {
	return c.send(MsgSendEvent, SendEventPayload{Code: code, Payload: payload, Scope: scope})
}

func (c *Client) CreateRoom(name string, maxPlayers int) error {
	return c.send(MsgCreateRoom, CreateRoomPayload{Name: name, MaxPlayers: maxPlayers})
}

func (c *Client) JoinRoom(name string, rejoin bool) error {
	return c.send(MsgJoinRoom, JoinRoomPayload{Name: name, Rejoin: rejoin})
}

func (c *Client) JoinRandomRoom(maxPlayers int) error {
	return c.send(MsgJoinRandomRoom, JoinRandomRoomPayload{MaxPlayers: maxPlayers})
}

func (c *Client) LeaveRoom() error {
	return c.send(MsgLeaveRoom, nil)
}

func (c *Client) SetRoomProperty(prop relay.RoomProperty, value bool) error {
	return c.send(MsgSetRoomProperty, SetRoomPropertyPayload{Property: prop, Value: value})
}
