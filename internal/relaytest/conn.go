package relaytest

import (
	"sync"

	"github.com/roomrelay/roomrelay/internal/relay"
)

// Conn is a relay.Transport attached directly to a Hub. Notifications are
// queued as the hub produces them and delivered on Service.
type Conn struct {
	peer  *Peer
	queue relay.Queue

	mu       sync.Mutex
	listener relay.Listener
	requests []string
}

var _ relay.Transport = (*Conn)(nil)

// Dial attaches a new transport to the hub.
func (h *Hub) Dial() *Conn {
	c := &Conn{}
	c.peer = h.Attach(func(n relay.Notification) { c.queue.Push(n) })
	return c
}

func (c *Conn) SetListener(l relay.Listener) {
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
}

func (c *Conn) record(req string) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
}

// Requests returns the names of the requests the transport accepted, in
// order.
func (c *Conn) Requests() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.requests...)
}

// Pending returns the number of notifications waiting for Service.
func (c *Conn) Pending() int {
	return c.queue.Len()
}

func (c *Conn) Connect(appID, appVersion, userName string) error {
	c.queue.Reset()
	if err := c.peer.Connect(appID, appVersion, userName); err != nil {
		return err
	}
	c.record("connect")
	return nil
}

// Disconnect detaches from the hub, discards undelivered notifications and
// queues relay.Disconnected.
func (c *Conn) Disconnect() error {
	if err := c.peer.Disconnect(); err != nil {
		return err
	}
	c.record("disconnect")
	c.queue.Reset()
	c.queue.Push(relay.Disconnected{})
	return nil
}

// Drop simulates losing the connection: the hub treats the peer as
// disconnected and the client sees a connection error followed by
// relay.Disconnected.
func (c *Conn) Drop(code int32) {
	if err := c.peer.Disconnect(); err != nil {
		return
	}
	c.queue.Push(relay.ConnectionError{Code: code}, relay.Disconnected{})
}

// Inject queues notifications as if the backend had sent them.
func (c *Conn) Inject(ns ...relay.Notification) {
	c.queue.Push(ns...)
}

func (c *Conn) Service() {
	c.mu.Lock()
	l := c.listener
	c.mu.Unlock()
	c.queue.DispatchAll(l)
}

func (c *Conn) SendEvent(code uint8, payload []byte, scope relay.Scope) error {
	if err := c.peer.SendEvent(code, payload, scope); err != nil {
		return err
	}
	c.record("send_event")
	return nil
}

func (c *Conn) CreateRoom(name string, maxPlayers int) error {
	if err := c.peer.CreateRoom(name, maxPlayers); err != nil {
		return err
	}
	c.record("create_room")
	return nil
}

func (c *Conn) JoinRoom(name string, rejoin bool) error {
	if err := c.peer.JoinRoom(name, rejoin); err != nil {
		return err
	}
	c.record("join_room")
	return nil
}

func (c *Conn) JoinRandomRoom(maxPlayers int) error {
	if err := c.peer.JoinRandomRoom(maxPlayers); err != nil {
		return err
	}
	c.record("join_random_room")
	return nil
}

func (c *Conn) LeaveRoom() error {
	if err := c.peer.LeaveRoom(); err != nil {
		return err
	}
	c.record("leave_room")
	return nil
}

func (c *Conn) SetRoomProperty(prop relay.RoomProperty, value bool) error {
	if err := c.peer.SetRoomProperty(prop, value); err != nil {
		return err
	}
	c.record("set_room_property")
	return nil
}
