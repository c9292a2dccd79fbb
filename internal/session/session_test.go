package session

import (
	"errors"
	"reflect"
	"slices"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/roomrelay/roomrelay/internal/codec"
	apperrors "github.com/roomrelay/roomrelay/internal/errors"
	"github.com/roomrelay/roomrelay/internal/relay"
	"github.com/roomrelay/roomrelay/internal/relaytest"
)

const (
	testAppID      = "test-app"
	testAppVersion = "1.0"
)

type received struct {
	sender int32
	code   uint8
	v      codec.Value
}

// recorder captures every handler invocation of one session.
type recorder struct {
	calls   []string
	errs    map[string]error
	states  []ConnectionState
	joined  []int32
	left    []int32
	masters []int32
	events  []received
}

func (r *recorder) result(name string) func(error) {
	return func(err error) {
		r.calls = append(r.calls, name)
		r.errs[name] = err
	}
}

func (r *recorder) handlers() Handlers {
	r.errs = make(map[string]error)
	return Handlers{
		OnStateChange:     func(_, to ConnectionState) { r.states = append(r.states, to) },
		OnConnect:         r.result("connect"),
		OnConnectionError: r.result("connection_error"),
		OnDisconnect:      func() { r.calls = append(r.calls, "disconnect") },
		OnCreateRoom:      r.result("create_room"),
		OnJoinRoom:        r.result("join_room"),
		OnJoinRandomRoom:  r.result("join_random_room"),
		OnLeaveRoom:       r.result("leave_room"),
		OnMemberJoined:    func(id int32, _ bool) { r.joined = append(r.joined, id) },
		OnMemberLeft:      func(id int32, _ bool) { r.left = append(r.left, id) },
		OnMasterChanged:   func(id int32) { r.masters = append(r.masters, id) },
		OnCustomEvent: func(sender int32, code uint8, v codec.Value) {
			r.events = append(r.events, received{sender, code, v})
		},
		OnError: r.result("error"),
	}
}

func (r *recorder) called(name string) bool {
	return slices.Contains(r.calls, name)
}

type client struct {
	*Session
	conn *relaytest.Conn
	rec  *recorder
}

func newClient(t *testing.T, hub *relaytest.Hub, version string, edit func(*Handlers)) *client {
	t.Helper()
	c := &client{conn: hub.Dial(), rec: &recorder{}}
	h := c.rec.handlers()
	if edit != nil {
		edit(&h)
	}
	s, err := New(c.conn, testAppID, version, WithLogger(zaptest.NewLogger(t)), WithHandlers(h))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Session = s
	return c
}

// connect brings c into the lobby.
func (c *client) connect(t *testing.T, name string, opts ...ConnectOption) {
	t.Helper()
	if err := c.Connect(name, opts...); err != nil {
		t.Fatalf("Connect(%q): %v", name, err)
	}
	c.Service()
	if got := c.State(); got != ConnectedToLobby {
		t.Fatalf("%s: state after connect = %s, want %s", name, got, ConnectedToLobby)
	}
}

// pump services every client until no notifications are pending.
func pump(cs ...*client) {
	for i := 0; i < 10; i++ {
		busy := false
		for _, c := range cs {
			if c.conn.Pending() > 0 {
				busy = true
				c.Service()
			}
		}
		if !busy {
			return
		}
	}
}

// checkInvariants asserts the membership invariants that must hold after
// every step.
func checkInvariants(t *testing.T, c *client) {
	t.Helper()
	id, hasID := c.LocalPlayerID()
	if hasID != c.IsInRoom() {
		t.Errorf("LocalPlayerID ok = %v but IsInRoom = %v", hasID, c.IsInRoom())
	}
	r, ok := c.Room()
	if !ok {
		return
	}
	active := r.ActiveIDs()
	if !slices.Contains(active, id) {
		t.Errorf("local id %d not among active members %v", id, active)
	}
	master, _ := c.MasterClientID()
	n := 0
	for _, m := range active {
		if m == master {
			n++
		}
	}
	if n != 1 {
		t.Errorf("master %d appears %d times among active members %v", master, n, active)
	}
	if len(r.Members) > r.MaxPlayers {
		t.Errorf("%d members exceed capacity %d", len(r.Members), r.MaxPlayers)
	}
}

func wantCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	if got := apperrors.CodeOf(err); got != code {
		t.Fatalf("error = %v (code %q), want code %q", err, got, code)
	}
}

func wantStatus(t *testing.T, err error, status int32) {
	t.Helper()
	var e *apperrors.Error
	if !errors.As(err, &e) || e.Status != status {
		t.Fatalf("error = %v, want backend status %d", err, status)
	}
}

func TestNewValidates(t *testing.T) {
	hub := relaytest.NewHub()
	if _, err := New(nil, testAppID, testAppVersion); err == nil {
		t.Error("New(nil transport) returned nil error")
	}
	if _, err := New(hub.Dial(), "", testAppVersion); err == nil {
		t.Error("New without app id returned nil error")
	}
	if _, err := New(hub.Dial(), testAppID, ""); err == nil {
		t.Error("New without app version returned nil error")
	}
}

func TestQueriesBeforeConnect(t *testing.T) {
	c := newClient(t, relaytest.NewHub(), testAppVersion, nil)

	if c.State() != Disconnected {
		t.Errorf("State() = %s, want disconnected", c.State())
	}
	if c.IsInRoom() || c.IsConnected() || c.IsMasterClient() {
		t.Error("fresh session reports connected or in room")
	}
	if _, ok := c.LocalPlayerID(); ok {
		t.Error("LocalPlayerID ok = true outside a room")
	}
	if _, ok := c.MasterClientID(); ok {
		t.Error("MasterClientID ok = true outside a room")
	}
	if c.CurrentRoomName() != "" || c.PlayerCountInCurrentRoom() != 0 || c.MaxPlayersInCurrentRoom() != 0 {
		t.Error("room queries not empty outside a room")
	}
	if c.RoomNameList() != nil || c.UserID() != "" {
		t.Error("lobby queries not empty before connect")
	}
}

func TestConnectReachesLobby(t *testing.T) {
	hub := relaytest.NewHub(relaytest.WithRegion("jp", "main"))
	c := newClient(t, hub, testAppVersion, nil)

	if err := c.Connect("Alice"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := c.State(); got != Connecting {
		t.Fatalf("State() before service = %s, want connecting", got)
	}
	c.Service()

	if got := c.State(); got != ConnectedToLobby {
		t.Fatalf("State() = %s, want connected_to_lobby", got)
	}
	if err, ok := c.rec.errs["connect"]; !ok || err != nil {
		t.Errorf("OnConnect(%v) called=%v, want success", err, ok)
	}
	if c.Name() != "Alice" {
		t.Errorf("Name() = %q", c.Name())
	}
	if c.UserID() == "" {
		t.Error("UserID() empty after connect")
	}
	if c.Region() != "jp" || c.Cluster() != "main" {
		t.Errorf("Region/Cluster = %q/%q, want jp/main", c.Region(), c.Cluster())
	}
	if c.CountPlayersOnline() != 1 {
		t.Errorf("CountPlayersOnline() = %d, want 1", c.CountPlayersOnline())
	}
	if want := []ConnectionState{Connecting, ConnectedToLobby}; !reflect.DeepEqual(c.rec.states, want) {
		t.Errorf("state changes = %v, want %v", c.rec.states, want)
	}
}

func TestConnectRejected(t *testing.T) {
	hub := relaytest.NewHub(relaytest.WithAllowedApps("other-app"))
	c := newClient(t, hub, testAppVersion, nil)

	if err := c.Connect("Alice"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	c.Service()

	if got := c.State(); got != Disconnected {
		t.Fatalf("State() = %s, want disconnected", got)
	}
	err := c.rec.errs["connect"]
	wantCode(t, err, apperrors.CodeConnection)
	wantStatus(t, err, relay.StatusInvalidAuthentication)
	if !errors.Is(c.LastError(), apperrors.ErrConnection) {
		t.Errorf("LastError() = %v", c.LastError())
	}
}

func TestRandomJoinFallsBackToCreate(t *testing.T) {
	hub := relaytest.NewHub()
	var alice *client
	alice = newClient(t, hub, testAppVersion, func(h *Handlers) {
		record := h.OnJoinRandomRoom
		h.OnJoinRandomRoom = func(err error) {
			record(err)
			if IsNoRandomMatch(err) {
				if err := alice.CreateRoom("AliceRoom", 4); err != nil {
					t.Errorf("CreateRoom from handler: %v", err)
				}
			}
		}
	})
	alice.connect(t, "Alice")

	if err := alice.JoinRandomRoom(4); err != nil {
		t.Fatalf("JoinRandomRoom: %v", err)
	}
	if got := alice.State(); got != JoiningOrInRoom {
		t.Errorf("State() after request = %s, want joining_or_in_room", got)
	}
	if alice.IsInRoom() {
		t.Error("IsInRoom() true before the backend answered")
	}
	pump(alice)

	err := alice.rec.errs["join_random_room"]
	wantCode(t, err, apperrors.CodeOperationRejected)
	wantStatus(t, err, relay.StatusNoRandomMatchFound)

	if !alice.IsInRoom() {
		t.Fatal("IsInRoom() = false after fallback create")
	}
	if got := alice.CurrentRoomName(); got != "AliceRoom" {
		t.Errorf("CurrentRoomName() = %q", got)
	}
	if got := alice.MaxPlayersInCurrentRoom(); got != 4 {
		t.Errorf("MaxPlayersInCurrentRoom() = %d, want 4", got)
	}
	if !alice.IsMasterClient() {
		t.Error("sole member is not the master client")
	}
	if got := alice.PlayerCountInCurrentRoom(); got != 1 {
		t.Errorf("PlayerCountInCurrentRoom() = %d, want 1", got)
	}
	checkInvariants(t, alice)
}

func TestTwoMembersShareRoom(t *testing.T) {
	hub := relaytest.NewHub()
	a := newClient(t, hub, testAppVersion, nil)
	b := newClient(t, hub, testAppVersion, nil)
	a.connect(t, "Alice")
	b.connect(t, "Bob")

	if err := a.CreateRoom("duo", 2); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	pump(a, b)

	if got := b.RoomNameList(); !reflect.DeepEqual(got, []string{"duo"}) {
		t.Errorf("lobby RoomNameList() = %v, want [duo]", got)
	}
	if got := b.CountGamesRunning(); got != 1 {
		t.Errorf("CountGamesRunning() = %d, want 1", got)
	}

	if err := b.JoinRoom("duo", false); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	pump(a, b)

	for _, c := range []*client{a, b} {
		if got := c.PlayerCountInCurrentRoom(); got != 2 {
			t.Errorf("%s: PlayerCountInCurrentRoom() = %d, want 2", c.Name(), got)
		}
		checkInvariants(t, c)
	}
	if !a.IsMasterClient() {
		t.Error("first joiner is not master")
	}
	if b.IsMasterClient() {
		t.Error("second joiner is master")
	}
	if !reflect.DeepEqual(a.rec.joined, []int32{1, 2}) {
		t.Errorf("first joiner saw joins %v, want [1 2]", a.rec.joined)
	}

	// a third member finds the room full
	c := newClient(t, hub, testAppVersion, nil)
	c.connect(t, "Carol")
	if err := c.JoinRoom("duo", false); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	pump(c)
	wantStatus(t, c.rec.errs["join_room"], relay.StatusGameFull)
	if got := c.State(); got != ConnectedToLobby {
		t.Errorf("State() after rejected join = %s, want connected_to_lobby", got)
	}
	checkInvariants(t, c)
}

func TestLeaveAndRejoinSameRoom(t *testing.T) {
	hub := relaytest.NewHub()
	a := newClient(t, hub, testAppVersion, nil)
	b := newClient(t, hub, testAppVersion, nil)
	a.connect(t, "Alice")
	b.connect(t, "Bob")

	a.CreateRoom("arena", 4)
	pump(a, b)
	b.JoinRoom("arena", false)
	pump(a, b)

	first, ok := b.LocalPlayerID()
	if !ok {
		t.Fatal("not in room after join")
	}

	if err := b.LeaveRoom(); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}
	if err := b.LeaveRoom(); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("second LeaveRoom() = %v, want INVALID_STATE", err)
	}
	pump(a, b)

	if b.IsInRoom() || b.State() != ConnectedToLobby {
		t.Fatalf("after leave: in room %v, state %s", b.IsInRoom(), b.State())
	}
	checkInvariants(t, b)
	if got := a.PlayerCountInCurrentRoom(); got != 1 {
		t.Errorf("remaining member count = %d, want 1", got)
	}

	b.JoinRoom("arena", false)
	pump(a, b)

	second, ok := b.LocalPlayerID()
	if !ok {
		t.Fatal("not in room after second join")
	}
	if b.CurrentRoomName() != "arena" {
		t.Errorf("CurrentRoomName() = %q, want arena", b.CurrentRoomName())
	}
	if second == first {
		t.Errorf("player id %d reused after leave", second)
	}
	checkInvariants(t, a)
	checkInvariants(t, b)
}

func TestMasterPassesOnLeave(t *testing.T) {
	hub := relaytest.NewHub()
	a := newClient(t, hub, testAppVersion, nil)
	b := newClient(t, hub, testAppVersion, nil)
	a.connect(t, "Alice")
	b.connect(t, "Bob")
	a.CreateRoom("m", 3)
	pump(a, b)
	b.JoinRoom("m", false)
	pump(a, b)

	a.LeaveRoom()
	pump(a, b)

	if !b.IsMasterClient() {
		t.Fatal("remaining member did not become master")
	}
	if !reflect.DeepEqual(b.rec.masters, []int32{2}) {
		t.Errorf("OnMasterChanged calls = %v, want [2]", b.rec.masters)
	}
	if !reflect.DeepEqual(b.rec.left, []int32{1}) {
		t.Errorf("OnMemberLeft calls = %v, want [1]", b.rec.left)
	}
	checkInvariants(t, b)
}

func TestDroppedMemberRejoins(t *testing.T) {
	hub := relaytest.NewHub()
	a := newClient(t, hub, testAppVersion, nil)
	b := newClient(t, hub, testAppVersion, nil)
	a.connect(t, "Alice")
	b.connect(t, "Bob")
	a.CreateRoom("keep", 3)
	pump(a, b)
	b.JoinRoom("keep", false)
	pump(a, b)
	id, _ := b.LocalPlayerID()

	b.conn.Drop(relay.StatusTimeoutDisconnect)
	pump(a, b)

	if got := b.State(); got != Disconnected {
		t.Fatalf("dropped session state = %s, want disconnected", got)
	}
	wantStatus(t, b.rec.errs["connection_error"], relay.StatusTimeoutDisconnect)
	if !b.rec.called("disconnect") {
		t.Error("OnDisconnect not called after drop")
	}
	checkInvariants(t, b)

	if got := a.PlayerCountInCurrentRoom(); got != 1 {
		t.Errorf("PlayerCountInCurrentRoom() = %d, want 1", got)
	}
	r, _ := a.Room()
	if len(r.Members) != 2 || !r.Members[1].Inactive {
		t.Errorf("Members = %+v, want dropped member kept inactive", r.Members)
	}

	b.connect(t, "Bob")
	if err := b.JoinRoom("keep", true); err != nil {
		t.Fatalf("JoinRoom(rejoin): %v", err)
	}
	pump(a, b)

	if got, _ := b.LocalPlayerID(); got != id {
		t.Errorf("rejoined with id %d, want %d", got, id)
	}
	if got := a.PlayerCountInCurrentRoom(); got != 2 {
		t.Errorf("PlayerCountInCurrentRoom() after rejoin = %d, want 2", got)
	}
	checkInvariants(t, a)
	checkInvariants(t, b)
}

func TestRaiseEventDeliversTypedValues(t *testing.T) {
	hub := relaytest.NewHub()
	a := newClient(t, hub, testAppVersion, nil)
	b := newClient(t, hub, testAppVersion, nil)
	a.connect(t, "Alice")
	b.connect(t, "Bob")
	a.CreateRoom("ev", 2)
	pump(a, b)
	b.JoinRoom("ev", false)
	pump(a, b)

	tris := []codec.Triangle{
		codec.TriangleAt(codec.Vec2{X: 100, Y: 100}, 40),
		codec.TriangleAt(codec.Vec2{X: 200, Y: 150}, 80),
	}
	grid, err := codec.NewGrid([][]codec.Vec4{
		{{X: 1, Y: 2, Z: 3, W: 4}, {X: 5, Y: 6, Z: 7, W: 8}},
		{{X: -1, Y: -2, Z: -3, W: -4}, {X: 0.5, Y: 0.25, Z: 0.125, W: 0}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := RaiseArray(a.Session, 33, tris); err != nil {
		t.Fatalf("RaiseArray: %v", err)
	}
	if err := a.RaiseEvent(34, grid); err != nil {
		t.Fatalf("RaiseEvent(grid): %v", err)
	}
	if err := Raise(a.Session, 7, int32(-5), ToAll()); err != nil {
		t.Fatalf("Raise: %v", err)
	}
	pump(a, b)

	want := []received{
		{1, 33, codec.Array[codec.Triangle](tris)},
		{1, 34, grid},
		{1, 7, codec.Of(int32(-5))},
	}
	if !reflect.DeepEqual(b.rec.events, want) {
		t.Errorf("receiver events = %+v, want %+v", b.rec.events, want)
	}
	// only the ToAll event comes back to the sender
	if len(a.rec.events) != 1 || a.rec.events[0].code != 7 {
		t.Errorf("sender events = %+v, want only code 7", a.rec.events)
	}
}

func TestMalformedEventReported(t *testing.T) {
	hub := relaytest.NewHub()
	a := newClient(t, hub, testAppVersion, nil)
	b := newClient(t, hub, testAppVersion, nil)
	a.connect(t, "Alice")
	b.connect(t, "Bob")
	a.CreateRoom("bad", 2)
	pump(a, b)
	b.JoinRoom("bad", false)
	pump(a, b)

	// bypass the session so the payload is not produced by the codec
	if err := a.conn.SendEvent(9, []byte{0xff, 0x00}, relay.ScopeOthers); err != nil {
		t.Fatal(err)
	}
	pump(a, b)

	if len(b.rec.events) != 0 {
		t.Errorf("custom event handler called with %+v", b.rec.events)
	}
	wantCode(t, b.rec.errs["error"], apperrors.CodeOperationRejected)
	if !b.IsInRoom() {
		t.Error("malformed payload affected room state")
	}
}

func TestPreconditionsNeverReachTransport(t *testing.T) {
	hub := relaytest.NewHub()
	c := newClient(t, hub, testAppVersion, nil)

	checks := []struct {
		name string
		call func() error
		code apperrors.Code
	}{
		{"disconnect while disconnected", c.Disconnect, apperrors.CodeInvalidState},
		{"create room while disconnected", func() error { return c.CreateRoom("r", 4) }, apperrors.CodeInvalidState},
		{"join room while disconnected", func() error { return c.JoinRoom("r", false) }, apperrors.CodeInvalidState},
		{"join random while disconnected", func() error { return c.JoinRandomRoom(0) }, apperrors.CodeInvalidState},
		{"leave room outside room", c.LeaveRoom, apperrors.CodeInvalidState},
		{"raise event outside room", func() error {
			return RaiseArray(c.Session, 33, []codec.Triangle{{}, {}})
		}, apperrors.CodeInvalidState},
		{"set open outside room", func() error { return c.SetIsOpenInCurrentRoom(false) }, apperrors.CodeInvalidState},
		{"set visible outside room", func() error { return c.SetIsVisibleInCurrentRoom(false) }, apperrors.CodeInvalidState},
		{"zero capacity", func() error { return c.CreateRoom("r", 0) }, apperrors.CodeOperationRejected},
		{"capacity above 255", func() error { return c.CreateRoom("r", 256) }, apperrors.CodeOperationRejected},
		{"random join capacity above 255", func() error { return c.JoinRandomRoom(300) }, apperrors.CodeOperationRejected},
	}
	for _, tt := range checks {
		t.Run(tt.name, func(t *testing.T) {
			wantCode(t, tt.call(), tt.code)
		})
	}

	if err := c.Connect("Alice"); err != nil {
		t.Fatal(err)
	}
	if err := c.Connect("Alice"); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("second Connect() = %v, want INVALID_STATE", err)
	}
	if err := c.JoinRoom("r", false); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("JoinRoom while connecting = %v, want INVALID_STATE", err)
	}
	c.Service()

	wantCode(t, c.CreateRoom("r", 0), apperrors.CodeOperationRejected)
	wantCode(t, c.CreateRoom("r", 256), apperrors.CodeOperationRejected)
	wantCode(t, c.JoinRoom("", false), apperrors.CodeOperationRejected)

	if got := c.conn.Requests(); !reflect.DeepEqual(got, []string{"connect"}) {
		t.Errorf("transport requests = %v, want only connect", got)
	}
	if len(c.rec.events) != 0 {
		t.Error("event handler fired for a rejected raise")
	}
}

func TestRoomRequestWhileJoiningRejected(t *testing.T) {
	c := newClient(t, relaytest.NewHub(), testAppVersion, nil)
	c.connect(t, "Alice")

	if err := c.CreateRoom("one", 2); err != nil {
		t.Fatal(err)
	}
	if err := c.JoinRandomRoom(0); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("JoinRandomRoom while joining = %v, want INVALID_STATE", err)
	}
	if err := c.RaiseEvent(1, codec.Of(true)); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("RaiseEvent before room result = %v, want INVALID_STATE", err)
	}
}

func TestRaiseEventCodecErrors(t *testing.T) {
	c := newClient(t, relaytest.NewHub(), testAppVersion, nil)
	c.connect(t, "Alice")
	c.CreateRoom("solo", 1)
	pump(c)

	wantCode(t, c.RaiseEvent(1, nil), apperrors.CodeUnsupportedPayloadType)
	wantCode(t, c.RaiseEvent(1, codec.Grid[int32]{Cols: 2, Rows: 2, Cells: []int32{1}}), apperrors.CodeInvalidShape)
	if got := c.conn.Requests(); slices.Contains(got, "send_event") {
		t.Errorf("invalid payload reached the transport: %v", got)
	}
}

func TestRoomPropertiesPropagate(t *testing.T) {
	hub := relaytest.NewHub()
	a := newClient(t, hub, testAppVersion, nil)
	b := newClient(t, hub, testAppVersion, nil)
	c := newClient(t, hub, testAppVersion, nil)
	a.connect(t, "Alice")
	b.connect(t, "Bob")
	c.connect(t, "Carol")
	a.CreateRoom("props", 4)
	pump(a, b, c)
	b.JoinRoom("props", false)
	pump(a, b, c)

	if err := a.SetIsOpenInCurrentRoom(false); err != nil {
		t.Fatal(err)
	}
	if a.IsOpenInCurrentRoom() {
		t.Error("local open flag not updated optimistically")
	}
	if err := a.SetIsVisibleInCurrentRoom(false); err != nil {
		t.Fatal(err)
	}
	pump(a, b, c)

	if b.IsOpenInCurrentRoom() || b.IsVisibleInCurrentRoom() {
		t.Error("other member did not observe property changes")
	}
	if got := c.RoomNameList(); len(got) != 0 {
		t.Errorf("hidden room still listed: %v", got)
	}

	c.JoinRoom("props", false)
	pump(c)
	wantStatus(t, c.rec.errs["join_room"], relay.StatusGameClosed)

	c.JoinRandomRoom(0)
	pump(c)
	if !IsNoRandomMatch(c.rec.errs["join_random_room"]) {
		t.Errorf("random join into closed room: %v", c.rec.errs["join_random_room"])
	}
}

func TestVersionsArePartitioned(t *testing.T) {
	hub := relaytest.NewHub()
	v1 := newClient(t, hub, "1.0", nil)
	v2 := newClient(t, hub, "2.0", nil)
	v1.connect(t, "Alice")
	v2.connect(t, "Bob")

	v1.CreateRoom("shared", 4)
	pump(v1, v2)

	if got := v2.RoomNameList(); len(got) != 0 {
		t.Errorf("other version sees rooms %v", got)
	}
	v2.JoinRoom("shared", false)
	pump(v2)
	wantStatus(t, v2.rec.errs["join_room"], relay.StatusGameDoesNotExist)
}

func TestDefaultRoomName(t *testing.T) {
	c := newClient(t, relaytest.NewHub(), testAppVersion, nil)
	c.connect(t, "Alice", WithDefaultRoom("home"))

	if c.DefaultRoomName() != "home" {
		t.Errorf("DefaultRoomName() = %q", c.DefaultRoomName())
	}
	c.CreateRoom("", 2)
	pump(c)
	if got := c.CurrentRoomName(); got != "home" {
		t.Errorf("CurrentRoomName() = %q, want home", got)
	}
}

func TestGeneratedRoomName(t *testing.T) {
	c := newClient(t, relaytest.NewHub(), testAppVersion, nil)
	c.connect(t, "Alice")

	c.CreateRoom("", 2)
	pump(c)
	if !c.IsInRoom() || c.CurrentRoomName() == "" {
		t.Errorf("in room %v with name %q, want generated name", c.IsInRoom(), c.CurrentRoomName())
	}
}

func TestDisconnectClearsState(t *testing.T) {
	hub := relaytest.NewHub()
	c := newClient(t, hub, testAppVersion, nil)
	c.connect(t, "Alice")
	c.CreateRoom("gone", 2)
	pump(c)

	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if c.State() != Disconnected || c.IsInRoom() || c.UserID() != "" {
		t.Errorf("after disconnect: state %s, in room %v, user id %q", c.State(), c.IsInRoom(), c.UserID())
	}
	if c.Name() != "" || c.DefaultRoomName() != "" || c.LastError() != nil {
		t.Errorf("after disconnect: name %q, default room %q, last error %v",
			c.Name(), c.DefaultRoomName(), c.LastError())
	}
	checkInvariants(t, c)

	c.Service()
	if !c.rec.called("disconnect") {
		t.Error("OnDisconnect not called")
	}
	if rooms := hub.Rooms(testAppID, testAppVersion); len(rooms) != 0 {
		t.Errorf("hub still has rooms %v", rooms)
	}

	// the session can connect again
	c.connect(t, "Alice")
}

func TestDisconnectDiscardsInFlightResults(t *testing.T) {
	c := newClient(t, relaytest.NewHub(), testAppVersion, nil)
	c.connect(t, "Alice")

	c.CreateRoom("late", 2)
	c.Disconnect()
	c.Service()

	if c.IsInRoom() || c.rec.called("create_room") {
		t.Error("room result delivered after disconnect")
	}
}

func TestHandlersMayReenter(t *testing.T) {
	hub := relaytest.NewHub()
	var c *client
	c = newClient(t, hub, testAppVersion, func(h *Handlers) {
		h.OnConnect = func(err error) {
			if err == nil {
				c.CreateRoom("auto", 3)
			}
		}
		h.OnCreateRoom = func(err error) {
			if err == nil && !c.IsInRoom() {
				t.Error("IsInRoom() false inside OnCreateRoom")
			}
		}
	})
	if err := c.Connect("Alice"); err != nil {
		t.Fatal(err)
	}
	pump(c)

	if got := c.CurrentRoomName(); got != "auto" {
		t.Errorf("CurrentRoomName() = %q, want auto", got)
	}
}

func TestForcedRemovalReturnsToLobby(t *testing.T) {
	hub := relaytest.NewHub()
	a := newClient(t, hub, testAppVersion, nil)
	b := newClient(t, hub, testAppVersion, nil)
	a.connect(t, "Alice")
	b.connect(t, "Bob")
	a.CreateRoom("kick", 3)
	pump(a, b)
	b.JoinRoom("kick", false)
	pump(a, b)

	id, ok := b.LocalPlayerID()
	if !ok {
		t.Fatal("second member not in room")
	}
	if !hub.Kick(testAppID, testAppVersion, "kick", id) {
		t.Fatalf("Kick(%d) found no member", id)
	}
	pump(a, b)

	if got := b.State(); got != ConnectedToLobby {
		t.Errorf("removed member state = %s, want %s", got, ConnectedToLobby)
	}
	if _, ok := b.LocalPlayerID(); ok {
		t.Error("removed member still has a local player id")
	}
	if !b.rec.called("leave_room") || b.rec.errs["leave_room"] != nil {
		t.Errorf("OnLeaveRoom called %v with %v, want nil error", b.rec.called("leave_room"), b.rec.errs["leave_room"])
	}
	if !reflect.DeepEqual(b.RoomNameList(), []string{"kick"}) {
		t.Errorf("removed member room list = %v", b.RoomNameList())
	}
	checkInvariants(t, b)

	if !slices.Contains(a.rec.left, id) || a.PlayerCountInCurrentRoom() != 1 {
		t.Errorf("remaining member saw left %v, count %d", a.rec.left, a.PlayerCountInCurrentRoom())
	}
	checkInvariants(t, a)

	// the removed member can come back
	b.JoinRoom("kick", false)
	pump(a, b)
	if !b.IsInRoom() {
		t.Errorf("rejoin after removal: state %s", b.State())
	}
}

// mute accepts room requests without passing them on, leaving the answer
// to the test.
type mute struct{ *relaytest.Conn }

func (mute) CreateRoom(string, int) error { return nil }
func (mute) LeaveRoom() error             { return nil }

func TestMalformedResponseFailsPendingRequest(t *testing.T) {
	rec := &recorder{}
	conn := relaytest.NewHub().Dial()
	s, err := New(mute{conn}, testAppID, testAppVersion,
		WithLogger(zaptest.NewLogger(t)), WithHandlers(rec.handlers()))
	if err != nil {
		t.Fatal(err)
	}
	c := &client{Session: s, conn: conn, rec: rec}
	c.connect(t, "Alice")

	if err := c.CreateRoom("r", 2); err != nil {
		t.Fatal(err)
	}
	conn.Inject(relay.Malformed{Frame: "room_result", Reason: "bad op"})
	c.Service()

	if got := c.State(); got != ConnectedToLobby {
		t.Fatalf("state = %s, want %s", got, ConnectedToLobby)
	}
	err = rec.errs["create_room"]
	wantCode(t, err, apperrors.CodeOperationRejected)
	wantStatus(t, err, relay.StatusMalformedResponse)
	if c.LastError() != err {
		t.Errorf("LastError() = %v", c.LastError())
	}
	checkInvariants(t, c)

	// the request slot is free again
	if err := c.CreateRoom("r", 2); err != nil {
		t.Fatalf("CreateRoom after malformed result: %v", err)
	}
	conn.Inject(relay.RoomResult{
		Op:      relay.OpCreateRoom,
		LocalID: 1,
		Room:    relay.RoomInfo{Name: "r", MaxPlayers: 2, IsOpen: true, IsVisible: true, Members: []relay.Member{{ID: 1}}},
	})
	c.Service()
	if !c.IsInRoom() {
		t.Fatalf("state = %s, want in room", c.State())
	}

	if err := c.LeaveRoom(); err != nil {
		t.Fatal(err)
	}
	conn.Inject(relay.Malformed{Frame: "leave_result", Reason: "truncated"})
	c.Service()
	wantCode(t, rec.errs["leave_room"], apperrors.CodeOperationRejected)
	if !c.IsInRoom() {
		t.Errorf("state = %s, want still in room", c.State())
	}

	// nothing is waiting for this one
	conn.Inject(relay.Malformed{Reason: "not json"})
	c.Service()
	wantCode(t, rec.errs["error"], apperrors.CodeOperationRejected)
	if !c.IsInRoom() {
		t.Errorf("state = %s after unrelated malformed frame", c.State())
	}
	checkInvariants(t, c)
}
