// Package session turns a relay transport into a connection and room
// lifecycle with a consistent local view of membership.
//
// A Session is driven by one host goroutine: operations are issued from it
// and Service is called from it on every loop iteration. Notifications are
// applied to the session's state inside Service and only then handed to the
// application's Handlers. Queries may be called from any goroutine.
package session

import (
	"slices"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/roomrelay/roomrelay/internal/codec"
	apperrors "github.com/roomrelay/roomrelay/internal/errors"
	"github.com/roomrelay/roomrelay/internal/relay"
)

// MaxRoomPlayers is the largest room capacity the backend accepts.
const MaxRoomPlayers = 255

// Session is the client-side state of one connection to a relay backend.
type Session struct {
	transport  relay.Transport
	appID      string
	appVersion string
	log        *zap.Logger
	handlers   Handlers

	mu          sync.RWMutex
	state       ConnectionState
	userName    string
	userID      string
	region      string
	cluster     string
	defaultRoom string
	pendingOp   relay.Op
	leaving     bool
	lastErr     error
	reg         registry

	// callbacks queued while mu is held, run by unlock
	queued []func()
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. A nil logger disables logging.
func WithLogger(log *zap.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithHandlers installs the application's notification handlers.
func WithHandlers(h Handlers) Option {
	return func(s *Session) { s.handlers = h }
}

// WithMasterPolicy selects how the master client is determined.
func WithMasterPolicy(p MasterPolicy) Option {
	return func(s *Session) { s.reg.policy = p }
}

// New creates a disconnected session bound to t. The application id and
// version are required; clients with different versions never meet.
func New(t relay.Transport, appID, appVersion string, opts ...Option) (*Session, error) {
	if t == nil {
		return nil, apperrors.New(apperrors.CodeOperationRejected, "transport is required")
	}
	if appID == "" {
		return nil, apperrors.New(apperrors.CodeOperationRejected, "app id is required")
	}
	if appVersion == "" {
		return nil, apperrors.New(apperrors.CodeOperationRejected, "app version is required")
	}
	s := &Session{
		transport:  t,
		appID:      appID,
		appVersion: appVersion,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("app_id", appID), zap.String("app_version", appVersion))
	t.SetListener(relay.ListenerFunc(s.route))
	return s, nil
}

// unlock releases mu and runs the callbacks queued while it was held, in
// order. Handlers therefore never run under the session lock and may call
// back into the session.
func (s *Session) unlock() {
	cbs := s.queued
	s.queued = nil
	s.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

func (s *Session) enqueue(cb func()) {
	s.queued = append(s.queued, cb)
}

// setState must be called with mu held.
func (s *Session) setState(to ConnectionState) {
	from := s.state
	if from == to {
		return
	}
	if !from.CanTransition(to) {
		s.log.Warn("unexpected state transition", zap.Stringer("from", from), zap.Stringer("to", to))
	}
	s.state = to
	s.log.Debug("state transition", zap.Stringer("from", from), zap.Stringer("to", to))
	if h := s.handlers.OnStateChange; h != nil {
		s.enqueue(func() { h(from, to) })
	}
}

// reset clears the session back to its unconnected form. lastErr survives
// so the cause of a lost connection can still be read. mu must be held.
func (s *Session) reset() {
	s.setState(Disconnected)
	s.userName = ""
	s.defaultRoom = ""
	s.userID = ""
	s.region = ""
	s.cluster = ""
	s.pendingOp = 0
	s.leaving = false
	s.reg.leave()
	s.reg.roomNames = nil
	s.reg.counts = relay.Counts{}
}

func (s *Session) invalidState(op string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidState,
		op+" not allowed while "+s.state.String(),
		map[string]string{"operation": op, "state": s.state.String()})
}

func sendFailed(op string, err error) error {
	return apperrors.Wrap(apperrors.CodeConnection, op+" request failed", err)
}

// ConnectOption configures a Connect call.
type ConnectOption func(*Session)

// WithDefaultRoom sets the room name CreateRoom and JoinRoom use when called
// with an empty name.
func WithDefaultRoom(name string) ConnectOption {
	return func(s *Session) { s.defaultRoom = name }
}

// Connect starts connecting as userName. The outcome arrives through
// Handlers.OnConnect.
func (s *Session) Connect(userName string, opts ...ConnectOption) error {
	s.mu.Lock()
	defer s.unlock()

	if s.state != Disconnected {
		return s.invalidState("connect")
	}
	if err := s.transport.Connect(s.appID, s.appVersion, userName); err != nil {
		s.lastErr = sendFailed("connect", err)
		return s.lastErr
	}
	s.userName = userName
	s.defaultRoom = ""
	for _, opt := range opts {
		opt(s)
	}
	s.lastErr = nil
	s.setState(Connecting)
	s.log.Info("connecting", zap.String("user", userName))
	return nil
}

// Disconnect drops the connection and clears all session and room state.
// Notifications still in flight are discarded.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.unlock()

	if s.state == Disconnected {
		return s.invalidState("disconnect")
	}
	err := s.transport.Disconnect()
	s.reset()
	s.lastErr = nil
	s.log.Info("disconnected by application")
	if err != nil {
		return sendFailed("disconnect", err)
	}
	return nil
}

// Service delivers pending transport notifications. It must be called on
// every iteration of the host loop.
func (s *Session) Service() {
	s.transport.Service()
}

func checkCapacity(maxPlayers int) error {
	if maxPlayers < 1 || maxPlayers > MaxRoomPlayers {
		return apperrors.WithMetadata(apperrors.CodeOperationRejected,
			"max players must be between 1 and 255",
			map[string]string{"max_players": strconv.Itoa(maxPlayers)})
	}
	return nil
}

// roomName resolves an empty name to the default room. mu must be held.
func (s *Session) roomName(name string) string {
	if name == "" {
		return s.defaultRoom
	}
	return name
}

// beginRoomOp records an in-flight room request. mu must be held.
func (s *Session) beginRoomOp(op relay.Op) {
	s.pendingOp = op
	s.setState(JoiningOrInRoom)
	s.log.Debug("room request sent", zap.Stringer("op", op))
}

// CreateRoom asks the backend to create and enter a room. An empty name
// falls back to the default room name; if that is empty too the backend
// generates a unique name.
func (s *Session) CreateRoom(name string, maxPlayers int) error {
	if err := checkCapacity(maxPlayers); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.unlock()

	if s.state != ConnectedToLobby {
		return s.invalidState("create_room")
	}
	name = s.roomName(name)
	if err := s.transport.CreateRoom(name, maxPlayers); err != nil {
		return sendFailed("create_room", err)
	}
	s.beginRoomOp(relay.OpCreateRoom)
	return nil
}

// JoinRoom asks to enter an existing room. With rejoin set, a member that
// previously dropped from the room gets its old player id back.
func (s *Session) JoinRoom(name string, rejoin bool) error {
	s.mu.Lock()
	defer s.unlock()

	if s.state != ConnectedToLobby {
		return s.invalidState("join_room")
	}
	name = s.roomName(name)
	if name == "" {
		return apperrors.New(apperrors.CodeOperationRejected, "room name is required")
	}
	if err := s.transport.JoinRoom(name, rejoin); err != nil {
		return sendFailed("join_room", err)
	}
	s.beginRoomOp(relay.OpJoinRoom)
	return nil
}

// JoinRandomRoom asks to enter any open room. A maxPlayers of zero matches
// rooms of any capacity. When nothing matches the result carries
// relay.StatusNoRandomMatchFound; see IsNoRandomMatch.
func (s *Session) JoinRandomRoom(maxPlayers int) error {
	if maxPlayers != 0 {
		if err := checkCapacity(maxPlayers); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.unlock()

	if s.state != ConnectedToLobby {
		return s.invalidState("join_random_room")
	}
	if err := s.transport.JoinRandomRoom(maxPlayers); err != nil {
		return sendFailed("join_random_room", err)
	}
	s.beginRoomOp(relay.OpJoinRandomRoom)
	return nil
}

// LeaveRoom asks to leave the current room.
func (s *Session) LeaveRoom() error {
	s.mu.Lock()
	defer s.unlock()

	if s.reg.room == nil || s.leaving {
		return s.invalidState("leave_room")
	}
	if err := s.transport.LeaveRoom(); err != nil {
		return sendFailed("leave_room", err)
	}
	s.leaving = true
	return nil
}

// EventOption configures a raised event.
type EventOption func(*relay.Scope)

// ToAll delivers the event to the sender as well.
func ToAll() EventOption {
	return func(sc *relay.Scope) { *sc = relay.ScopeAll }
}

// RaiseEvent sends v to the other members of the current room under code.
// It fails with an INVALID_STATE error outside a room and with the codec's
// error when v cannot be encoded.
func (s *Session) RaiseEvent(code uint8, v codec.Value, opts ...EventOption) error {
	scope := relay.ScopeOthers
	for _, opt := range opts {
		opt(&scope)
	}

	s.mu.RLock()
	inRoom := s.reg.room != nil
	state := s.state
	s.mu.RUnlock()
	if !inRoom {
		return apperrors.WithMetadata(apperrors.CodeInvalidState,
			"raise_event not allowed outside a room",
			map[string]string{"operation": "raise_event", "state": state.String()})
	}

	payload, err := codec.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.transport.SendEvent(code, payload, scope); err != nil {
		return sendFailed("raise_event", err)
	}
	return nil
}

// Raise is RaiseEvent for a single element value.
func Raise[T codec.Element](s *Session, code uint8, v T, opts ...EventOption) error {
	return s.RaiseEvent(code, codec.Of(v), opts...)
}

// RaiseArray is RaiseEvent for an array of elements.
func RaiseArray[T codec.Element](s *Session, code uint8, vs []T, opts ...EventOption) error {
	return s.RaiseEvent(code, codec.Array[T](vs), opts...)
}

func (s *Session) setRoomProperty(op string, prop relay.RoomProperty, value bool) error {
	s.mu.Lock()
	defer s.unlock()

	if s.reg.room == nil {
		return s.invalidState(op)
	}
	if err := s.transport.SetRoomProperty(prop, value); err != nil {
		return sendFailed(op, err)
	}
	s.reg.setProperty(prop, value)
	return nil
}

// SetIsOpenInCurrentRoom changes whether the room accepts new members.
func (s *Session) SetIsOpenInCurrentRoom(open bool) error {
	return s.setRoomProperty("set_is_open", relay.PropertyOpen, open)
}

// SetIsVisibleInCurrentRoom changes whether the room is listed in the lobby.
func (s *Session) SetIsVisibleInCurrentRoom(visible bool) error {
	return s.setRoomProperty("set_is_visible", relay.PropertyVisible, visible)
}

// Queries.

func (s *Session) AppID() string      { return s.appID }
func (s *Session) AppVersion() string { return s.appVersion }

func (s *Session) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Name returns the local user name given to Connect, empty while
// disconnected.
func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userName
}

// UserID returns the backend-assigned session identifier, empty until the
// connection is established.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) Region() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.region
}

func (s *Session) Cluster() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cluster
}

func (s *Session) DefaultRoomName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultRoom
}

// LastError returns the most recent connection or room error, or nil. It
// outlives a lost connection and is cleared by Connect and Disconnect.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Session) IsConnected() bool {
	st := s.State()
	return st == ConnectedToLobby || st == JoiningOrInRoom
}

func (s *Session) IsInLobby() bool {
	return s.State() == ConnectedToLobby
}

// IsInRoom reports whether the session holds room state, which is only
// after a successful join or create.
func (s *Session) IsInRoom() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.room != nil
}

// Room returns a snapshot of the current room.
func (s *Session) Room() (RoomState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reg.room == nil {
		return RoomState{}, false
	}
	return s.reg.room.clone(), true
}

func (s *Session) CurrentRoomName() string {
	r, _ := s.Room()
	return r.Name
}

// PlayerCountInCurrentRoom counts active members only.
func (s *Session) PlayerCountInCurrentRoom() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reg.room == nil {
		return 0
	}
	return s.reg.room.ActiveCount()
}

func (s *Session) MaxPlayersInCurrentRoom() int {
	r, _ := s.Room()
	return r.MaxPlayers
}

func (s *Session) IsOpenInCurrentRoom() bool {
	r, _ := s.Room()
	return r.IsOpen
}

func (s *Session) IsVisibleInCurrentRoom() bool {
	r, _ := s.Room()
	return r.IsVisible
}

// LocalPlayerID returns the local member's id; ok is false outside a room.
func (s *Session) LocalPlayerID() (id int32, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reg.room == nil {
		return 0, false
	}
	return s.reg.room.LocalID, true
}

// MasterClientID returns the master member's id; ok is false outside a room.
func (s *Session) MasterClientID() (id int32, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reg.room == nil {
		return 0, false
	}
	return s.reg.room.MasterID, true
}

func (s *Session) IsMasterClient() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.reg.room
	return r != nil && r.MasterID == r.LocalID
}

// RoomNameList returns the names of the rooms listed in the lobby.
func (s *Session) RoomNameList() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.reg.roomNames)
}

func (s *Session) Counts() relay.Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.counts
}

func (s *Session) CountGamesRunning() int  { return s.Counts().GamesRunning }
func (s *Session) CountPlayersIngame() int { return s.Counts().PlayersIngame }
func (s *Session) CountPlayersOnline() int { return s.Counts().PlayersOnline }
