package wsrelay_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/roomrelay/roomrelay/internal/codec"
	apperrors "github.com/roomrelay/roomrelay/internal/errors"
	"github.com/roomrelay/roomrelay/internal/relay"
	"github.com/roomrelay/roomrelay/internal/relaytest"
	"github.com/roomrelay/roomrelay/internal/session"
	"github.com/roomrelay/roomrelay/internal/wsrelay"
)

const waitTimeout = 3 * time.Second

func newServer(t *testing.T) string {
	t.Helper()
	// hub and client goroutines outlive the test, so they log nowhere
	hub := relaytest.NewHub()
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// recorder is a Listener keeping everything delivered to it.
type recorder struct {
	got []relay.Notification
}

func (r *recorder) Notify(n relay.Notification) { r.got = append(r.got, n) }

func (r *recorder) last() relay.Notification {
	if len(r.got) == 0 {
		return nil
	}
	return r.got[len(r.got)-1]
}

// serviceUntil services c until cond holds or the wait times out.
func serviceUntil(t *testing.T, c relay.Transport, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		c.Service()
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func has[N relay.Notification](r *recorder) func() bool {
	return func() bool {
		for _, n := range r.got {
			if _, ok := n.(N); ok {
				return true
			}
		}
		return false
	}
}

func TestConnectOverWebsocket(t *testing.T) {
	url := newServer(t)
	c := wsrelay.New(wsrelay.DefaultConfig(url), nil)
	rec := &recorder{}
	c.SetListener(rec)

	if err := c.Connect("app", "1", "alice"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.Connect("app", "1", "alice"); err != wsrelay.ErrAlreadyConnected {
		t.Errorf("second Connect() = %v, want ErrAlreadyConnected", err)
	}
	serviceUntil(t, c, "connect result", has[relay.ConnectResult](rec))

	res := rec.got[0].(relay.ConnectResult)
	if !res.Status.OK() || !strings.HasPrefix(res.UserID, "alice#") {
		t.Errorf("connect result = %+v", res)
	}
	if c.ClientID() == "" {
		t.Error("ClientID() empty after connect")
	}

	if err := c.CreateRoom("r", 2); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	serviceUntil(t, c, "room result", has[relay.RoomResult](rec))

	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	rec.got = nil
	c.Service()
	if _, ok := rec.last().(relay.Disconnected); !ok || len(rec.got) != 1 {
		t.Errorf("after Disconnect got %v, want only Disconnected", rec.got)
	}
	if err := c.LeaveRoom(); err != wsrelay.ErrNotConnected {
		t.Errorf("LeaveRoom() after disconnect = %v, want ErrNotConnected", err)
	}
	if err := c.Disconnect(); err != wsrelay.ErrNotConnected {
		t.Errorf("second Disconnect() = %v, want ErrNotConnected", err)
	}
}

func TestDialFailure(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	cfg := wsrelay.DefaultConfig(url)
	cfg.DialTimeout = time.Second
	c := wsrelay.New(cfg, nil)
	rec := &recorder{}
	c.SetListener(rec)

	if err := c.Connect("app", "1", "alice"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	serviceUntil(t, c, "disconnect", has[relay.Disconnected](rec))

	ce, ok := rec.got[0].(relay.ConnectionError)
	if !ok || ce.Code != relay.StatusExceptionOnConnect {
		t.Errorf("first notification = %#v, want connection error %d", rec.got[0], relay.StatusExceptionOnConnect)
	}
}

func TestServiceWatchdog(t *testing.T) {
	url := newServer(t)
	cfg := wsrelay.DefaultConfig(url)
	cfg.ServiceTimeout = 100 * time.Millisecond
	c := wsrelay.New(cfg, nil)
	rec := &recorder{}
	c.SetListener(rec)

	if err := c.Connect("app", "1", "alice"); err != nil {
		t.Fatal(err)
	}
	serviceUntil(t, c, "connect result", has[relay.ConnectResult](rec))

	// stop servicing long enough for the watchdog to fire
	time.Sleep(400 * time.Millisecond)
	c.Service()

	var code int32
	for _, n := range rec.got {
		if ce, ok := n.(relay.ConnectionError); ok {
			code = ce.Code
		}
	}
	if code != relay.StatusTimeoutDisconnect {
		t.Fatalf("connection error code = %d, want %d; got %v", code, relay.StatusTimeoutDisconnect, rec.got)
	}
	if _, ok := rec.last().(relay.Disconnected); !ok {
		t.Errorf("last notification = %#v, want Disconnected", rec.last())
	}
}

func TestSessionsExchangeEventsOverWebsocket(t *testing.T) {
	url := newServer(t)

	newSession := func(h session.Handlers) (*session.Session, *wsrelay.Client) {
		c := wsrelay.New(wsrelay.DefaultConfig(url), nil)
		s, err := session.New(c, "app", "1", session.WithLogger(zaptest.NewLogger(t)), session.WithHandlers(h))
		if err != nil {
			t.Fatal(err)
		}
		return s, c
	}

	type event struct {
		sender int32
		code   uint8
		v      codec.Value
	}
	var events []event
	a, _ := newSession(session.Handlers{})
	b, bc := newSession(session.Handlers{
		OnCustomEvent: func(sender int32, code uint8, v codec.Value) {
			events = append(events, event{sender, code, v})
		},
	})

	a.Connect("Alice")
	b.Connect("Bob")
	serviceUntil(t, bc, "both connected", func() bool {
		a.Service()
		return a.IsInLobby() && b.IsInLobby()
	})

	if err := a.CreateRoom("ws-room", 2); err != nil {
		t.Fatal(err)
	}
	serviceUntil(t, bc, "room listed", func() bool {
		a.Service()
		return a.IsInRoom() && reflect.DeepEqual(b.RoomNameList(), []string{"ws-room"})
	})

	if err := b.JoinRoom("ws-room", false); err != nil {
		t.Fatal(err)
	}
	serviceUntil(t, bc, "two members", func() bool {
		a.Service()
		return b.IsInRoom() && a.PlayerCountInCurrentRoom() == 2
	})
	if !a.IsMasterClient() || b.IsMasterClient() {
		t.Errorf("master flags: first %v, second %v", a.IsMasterClient(), b.IsMasterClient())
	}

	tris := []codec.Triangle{
		codec.TriangleAt(codec.Vec2{X: 10, Y: 20}, 5),
		codec.TriangleAt(codec.Vec2{X: 30, Y: 40}, 6),
	}
	if err := session.RaiseArray(a, 33, tris); err != nil {
		t.Fatalf("RaiseArray: %v", err)
	}
	serviceUntil(t, bc, "event", func() bool { return len(events) > 0 })

	want := event{1, 33, codec.Array[codec.Triangle](tris)}
	if !reflect.DeepEqual(events[0], want) {
		t.Errorf("event = %+v, want %+v", events[0], want)
	}
}

// scriptedServer accepts one websocket, reads the hello and then answers
// each request with the next frame from replies.
func scriptedServer(t *testing.T, replies ...[]byte) string {
	t.Helper()
	var upgrader websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		connected, _ := wsrelay.EncodeNotification(relay.ConnectResult{UserID: "alice#1", Region: "local"}, 1)
		if err := conn.WriteMessage(websocket.TextMessage, connected); err != nil {
			return
		}
		for _, reply := range replies {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}
		}
		// hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestUndecodableFrameFailsPendingRequest(t *testing.T) {
	created, err := wsrelay.EncodeNotification(relay.RoomResult{
		Op:      relay.OpCreateRoom,
		LocalID: 1,
		Room:    relay.RoomInfo{Name: "r", MaxPlayers: 2, IsOpen: true, IsVisible: true, Members: []relay.Member{{ID: 1}}},
	}, 3)
	if err != nil {
		t.Fatal(err)
	}
	url := scriptedServer(t, []byte(`{"type":"room_result","payload":{"op":"bogus"}}`), created)

	var results []error
	c := wsrelay.New(wsrelay.DefaultConfig(url), nil)
	s, err := session.New(c, "app", "1", session.WithLogger(zaptest.NewLogger(t)),
		session.WithHandlers(session.Handlers{
			OnCreateRoom: func(err error) { results = append(results, err) },
		}))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Disconnect()

	s.Connect("Alice")
	serviceUntil(t, c, "connected", func() bool { return s.IsInLobby() })

	if err := s.CreateRoom("r", 2); err != nil {
		t.Fatal(err)
	}
	serviceUntil(t, c, "create room result", func() bool { return len(results) > 0 })

	if !s.IsInLobby() {
		t.Fatalf("state = %s, want connected_to_lobby", s.State())
	}
	var e *apperrors.Error
	if !errors.As(results[0], &e) || e.Code != apperrors.CodeOperationRejected || e.Status != relay.StatusMalformedResponse {
		t.Fatalf("create room error = %v, want malformed response rejection", results[0])
	}
	if e.Metadata["frame"] != "room_result" {
		t.Errorf("metadata = %v", e.Metadata)
	}

	if err := s.CreateRoom("r", 2); err != nil {
		t.Fatalf("second CreateRoom: %v", err)
	}
	serviceUntil(t, c, "second create room result", func() bool { return len(results) > 1 })
	if results[1] != nil || s.CurrentRoomName() != "r" {
		t.Errorf("second create room = %v, room %q", results[1], s.CurrentRoomName())
	}
}
