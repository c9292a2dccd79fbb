package session

import (
	"errors"

	"go.uber.org/zap"

	"github.com/roomrelay/roomrelay/internal/codec"
	apperrors "github.com/roomrelay/roomrelay/internal/errors"
	"github.com/roomrelay/roomrelay/internal/relay"
)

// Handlers are the application's notification points. Every field is
// optional. Handlers run inside Session.Service, after the session state has
// been updated, and may call any Session method.
//
// Result handlers receive a nil error on success. Failures carry a coded
// error from internal/errors with the backend status attached.
type Handlers struct {
	OnStateChange func(from, to ConnectionState)

	OnConnect         func(err error)
	OnConnectionError func(err error)
	OnDisconnect      func()

	OnCreateRoom     func(err error)
	OnJoinRoom       func(err error)
	OnJoinRandomRoom func(err error)
	OnLeaveRoom      func(err error)

	OnMemberJoined        func(playerID int32, isSelf bool)
	OnMemberLeft          func(playerID int32, isInactive bool)
	OnMasterChanged       func(playerID int32)
	OnRoomPropertyChanged func(prop relay.RoomProperty, value bool)
	OnRoomListUpdate      func(names []string)
	OnCountsUpdate        func(c relay.Counts)

	// OnCustomEvent receives every event raised by a room member. v is one
	// of the codec's Scalar, Array or Grid instantiations; v.Type()
	// identifies which.
	OnCustomEvent func(sender int32, code uint8, v codec.Value)

	// OnError receives failures that are not the answer to a request, such
	// as an event payload that cannot be decoded.
	OnError func(err error)
}

// IsNoRandomMatch reports whether err is the answer to JoinRandomRoom when
// no room matched. Applications usually create a room in response.
func IsNoRandomMatch(err error) bool {
	var e *apperrors.Error
	return errors.As(err, &e) && e.Status == relay.StatusNoRandomMatchFound
}

// route applies a notification to the session and queues the matching
// handler. It is the transport's Listener and runs inside Service.
func (s *Session) route(n relay.Notification) {
	s.mu.Lock()
	defer s.unlock()

	switch n := n.(type) {
	case relay.ConnectResult:
		s.onConnectResult(n)
	case relay.ConnectionError:
		s.onConnectionError(n)
	case relay.Disconnected:
		s.onDisconnected()
	case relay.RoomResult:
		s.onRoomResult(n)
	case relay.LeaveResult:
		s.onLeaveResult(n)
	case relay.MemberJoined:
		s.onMemberJoined(n)
	case relay.MemberLeft:
		s.onMemberLeft(n)
	case relay.MasterChanged:
		s.onMasterChanged(n)
	case relay.RoomPropertyChanged:
		s.onRoomPropertyChanged(n)
	case relay.RoomListUpdated:
		s.onRoomListUpdated(n)
	case relay.CountsUpdated:
		s.onCountsUpdated(n)
	case relay.EventReceived:
		s.onEventReceived(n)
	case relay.Malformed:
		s.onMalformed(n)
	default:
		s.log.Warn("unhandled notification", zap.String("kind", n.Kind()))
	}
}

func (s *Session) stale(n relay.Notification) {
	s.log.Debug("dropping stale notification",
		zap.String("kind", n.Kind()), zap.Stringer("state", s.state))
}

func (s *Session) onConnectResult(n relay.ConnectResult) {
	if s.state != Connecting {
		s.stale(n)
		return
	}
	h := s.handlers.OnConnect
	if err := n.Status.Err(apperrors.CodeConnection); err != nil {
		s.lastErr = err
		s.reset()
		s.log.Warn("connect failed", zap.Int32("code", n.Status.Code), zap.Error(err))
		if h != nil {
			s.enqueue(func() { h(err) })
		}
		return
	}
	s.userID = n.UserID
	s.region = n.Region
	s.cluster = n.Cluster
	s.setState(ConnectedToLobby)
	s.log.Info("connected",
		zap.String("user_id", n.UserID), zap.String("region", n.Region), zap.String("cluster", n.Cluster))
	if h != nil {
		s.enqueue(func() { h(nil) })
	}
}

func (s *Session) onConnectionError(n relay.ConnectionError) {
	err := apperrors.WithStatus(apperrors.CodeConnection, n.Code, relay.StatusText(n.Code))
	s.lastErr = err
	if s.state != Disconnected {
		s.reset()
	}
	s.log.Warn("connection error", zap.Int32("code", n.Code), zap.Error(err))
	if h := s.handlers.OnConnectionError; h != nil {
		s.enqueue(func() { h(err) })
	}
}

func (s *Session) onDisconnected() {
	if s.state != Disconnected {
		s.reset()
		s.log.Info("disconnected")
	}
	if h := s.handlers.OnDisconnect; h != nil {
		s.enqueue(h)
	}
}

func (s *Session) roomHandler(op relay.Op) func(error) {
	switch op {
	case relay.OpCreateRoom:
		return s.handlers.OnCreateRoom
	case relay.OpJoinRoom:
		return s.handlers.OnJoinRoom
	case relay.OpJoinRandomRoom:
		return s.handlers.OnJoinRandomRoom
	}
	return nil
}

func (s *Session) onRoomResult(n relay.RoomResult) {
	if s.state != JoiningOrInRoom || s.reg.room != nil {
		s.stale(n)
		return
	}
	if s.pendingOp != 0 && n.Op != s.pendingOp {
		s.log.Warn("room result does not match request",
			zap.Stringer("pending", s.pendingOp), zap.Stringer("got", n.Op))
	}
	s.pendingOp = 0
	h := s.roomHandler(n.Op)

	if err := n.Status.Err(apperrors.CodeOperationRejected); err != nil {
		s.lastErr = err
		s.setState(ConnectedToLobby)
		s.log.Info("room request rejected", zap.Stringer("op", n.Op),
			zap.Int32("code", n.Status.Code), zap.Error(err))
		if h != nil {
			s.enqueue(func() { h(err) })
		}
		return
	}
	if n.LocalID == 0 {
		err := apperrors.New(apperrors.CodeOperationRejected, "malformed room result: missing local player id")
		s.lastErr = err
		s.setState(ConnectedToLobby)
		s.log.Warn("malformed room result", zap.Stringer("op", n.Op))
		if h != nil {
			s.enqueue(func() { h(err) })
		}
		return
	}

	s.reg.enter(n.LocalID, n.Room)
	room := s.reg.room
	s.log.Info("entered room", zap.Stringer("op", n.Op), zap.String("room", room.Name),
		zap.Int32("local_id", room.LocalID), zap.Int32("master_id", room.MasterID))
	if h != nil {
		s.enqueue(func() { h(nil) })
	}
}

func (s *Session) onLeaveResult(n relay.LeaveResult) {
	if s.reg.room == nil {
		s.stale(n)
		return
	}
	h := s.handlers.OnLeaveRoom
	if err := n.Status.Err(apperrors.CodeOperationRejected); err != nil {
		s.leaving = false
		s.log.Warn("leave rejected", zap.Int32("code", n.Status.Code), zap.Error(err))
		if h != nil {
			s.enqueue(func() { h(err) })
		}
		return
	}
	name := s.reg.room.Name
	s.reg.leave()
	s.leaving = false
	s.setState(ConnectedToLobby)
	s.log.Info("left room", zap.String("room", name))
	if h != nil {
		s.enqueue(func() { h(nil) })
	}
}

func (s *Session) onMemberJoined(n relay.MemberJoined) {
	if s.reg.room == nil {
		s.stale(n)
		return
	}
	changed := s.reg.memberJoined(n.PlayerID, n.Members)
	isSelf := n.IsSelf || n.PlayerID == s.reg.room.LocalID
	s.log.Debug("member joined", zap.Int32("player_id", n.PlayerID), zap.Bool("self", isSelf))
	if h := s.handlers.OnMemberJoined; h != nil {
		s.enqueue(func() { h(n.PlayerID, isSelf) })
	}
	if changed {
		s.masterChanged()
	}
}

func (s *Session) onMemberLeft(n relay.MemberLeft) {
	if s.reg.room == nil {
		s.stale(n)
		return
	}
	changed := s.reg.memberLeft(n.PlayerID, n.IsInactive)
	s.log.Debug("member left", zap.Int32("player_id", n.PlayerID), zap.Bool("inactive", n.IsInactive))
	if h := s.handlers.OnMemberLeft; h != nil {
		s.enqueue(func() { h(n.PlayerID, n.IsInactive) })
	}
	if changed {
		s.masterChanged()
	}
}

func (s *Session) onMasterChanged(n relay.MasterChanged) {
	if s.reg.room == nil {
		s.stale(n)
		return
	}
	if s.reg.policy != MasterBackend {
		s.log.Debug("ignoring backend master", zap.Int32("player_id", n.PlayerID))
		return
	}
	if s.reg.updateMaster(n.PlayerID) {
		s.masterChanged()
	}
}

// masterChanged queues OnMasterChanged for the current master.
func (s *Session) masterChanged() {
	id := s.reg.room.MasterID
	s.log.Debug("master changed", zap.Int32("master_id", id))
	if h := s.handlers.OnMasterChanged; h != nil {
		s.enqueue(func() { h(id) })
	}
}

func (s *Session) onRoomPropertyChanged(n relay.RoomPropertyChanged) {
	if s.reg.room == nil {
		s.stale(n)
		return
	}
	s.reg.setProperty(n.Property, n.Value)
	if h := s.handlers.OnRoomPropertyChanged; h != nil {
		s.enqueue(func() { h(n.Property, n.Value) })
	}
}

func (s *Session) onRoomListUpdated(n relay.RoomListUpdated) {
	if s.state == Disconnected {
		s.stale(n)
		return
	}
	s.reg.setRoomNames(n.Names)
	if h := s.handlers.OnRoomListUpdate; h != nil {
		names := s.reg.roomNames
		s.enqueue(func() { h(append([]string(nil), names...)) })
	}
}

func (s *Session) onCountsUpdated(n relay.CountsUpdated) {
	if s.state == Disconnected {
		s.stale(n)
		return
	}
	s.reg.counts = n.Counts
	if h := s.handlers.OnCountsUpdate; h != nil {
		s.enqueue(func() { h(n.Counts) })
	}
}

func (s *Session) onEventReceived(n relay.EventReceived) {
	if s.reg.room == nil {
		s.stale(n)
		return
	}
	v, err := codec.Unmarshal(n.Payload)
	if err != nil {
		err = apperrors.Wrap(apperrors.CodeOperationRejected, "malformed event payload", err)
		s.log.Warn("dropping event", zap.Int32("sender", n.Sender), zap.Uint8("code", n.Code), zap.Error(err))
		if h := s.handlers.OnError; h != nil {
			s.enqueue(func() { h(err) })
		}
		return
	}
	if h := s.handlers.OnCustomEvent; h != nil {
		s.enqueue(func() { h(n.Sender, n.Code, v) })
	}
}

// onMalformed answers the request a garbled response was meant for, so the
// session never waits for an answer that will not come. Anything else goes to
// OnError.
func (s *Session) onMalformed(n relay.Malformed) {
	err := &apperrors.Error{
		Code:     apperrors.CodeOperationRejected,
		Message:  "malformed response",
		Status:   relay.StatusMalformedResponse,
		Metadata: map[string]string{"frame": n.Frame, "reason": n.Reason},
	}
	s.lastErr = err
	s.log.Warn("malformed response", zap.String("frame", n.Frame), zap.String("reason", n.Reason))

	var h func(error)
	switch {
	case n.Frame == relay.ConnectResult{}.Kind() && s.state == Connecting:
		h = s.handlers.OnConnect
		s.reset()
		// the transport may think it is connected
		if terr := s.transport.Disconnect(); terr != nil {
			s.log.Debug("disconnect after malformed connect result", zap.Error(terr))
		}
	case n.Frame == relay.RoomResult{}.Kind() && s.state == JoiningOrInRoom && s.reg.room == nil:
		h = s.roomHandler(s.pendingOp)
		s.pendingOp = 0
		s.setState(ConnectedToLobby)
	case n.Frame == relay.LeaveResult{}.Kind() && s.leaving:
		h = s.handlers.OnLeaveRoom
		s.leaving = false
	}
	if h == nil {
		h = s.handlers.OnError
	}
	if h != nil {
		s.enqueue(func() { h(err) })
	}
}
