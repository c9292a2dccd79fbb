package relay

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/roomrelay/roomrelay/internal/errors"
)

// Backend status codes. Zero is success; positive room codes follow the
// LoadBalancing numbering so that values logged here match backend logs.
const (
	StatusOK                     int32 = 0
	StatusInternalError          int32 = -1
	StatusInvalidOperation       int32 = -2
	StatusOperationNotAllowed    int32 = -3
	StatusMalformedResponse      int32 = -10
	StatusExceptionOnConnect     int32 = 1023
	StatusTimeoutDisconnect      int32 = 1040
	StatusDisconnectByServer     int32 = 1041
	StatusInvalidAuthentication  int32 = 32767
	StatusGameIDAlreadyExists    int32 = 32766
	StatusGameFull               int32 = 32765
	StatusGameClosed             int32 = 32764
	StatusServerFull             int32 = 32762
	StatusNoRandomMatchFound     int32 = 0x7FFF - 7
	StatusGameDoesNotExist       int32 = 32758
	StatusJoinFailedActiveJoiner int32 = 32746
)

// Status is the outcome the backend attached to a response.
type Status struct {
	Code    int32  `json:"code"`
	Message string `json:"message,omitempty"`
}

// OK reports whether the status denotes success.
func (s Status) OK() bool {
	return s.Code == StatusOK
}

// Err converts a failed status into a coded error of the given class. It
// returns nil for success.
func (s Status) Err(code apperrors.Code) error {
	if s.OK() {
		return nil
	}
	msg := s.Message
	if msg == "" {
		msg = StatusText(s.Code)
	}
	return apperrors.WithStatus(code, s.Code, msg)
}

var statusText = map[int32]string{
	StatusInternalError:          "internal server error",
	StatusInvalidOperation:       "invalid operation",
	StatusOperationNotAllowed:    "operation not allowed in current state",
	StatusMalformedResponse:      "malformed response",
	StatusExceptionOnConnect:     "could not connect to server",
	StatusTimeoutDisconnect:      "connection timed out",
	StatusDisconnectByServer:     "disconnected by server",
	StatusInvalidAuthentication:  "invalid authentication",
	StatusGameIDAlreadyExists:    "room name already in use",
	StatusGameFull:               "room is full",
	StatusGameClosed:             "room is closed",
	StatusServerFull:             "server is full",
	StatusNoRandomMatchFound:     "no random match found",
	StatusGameDoesNotExist:       "room does not exist",
	StatusJoinFailedActiveJoiner: "user is already an active member",
}

// StatusText returns a description of a backend status code.
func StatusText(code int32) string {
	if s, ok := statusText[code]; ok {
		return s
	}
	return fmt.Sprintf("status %d", code)
}

// Op identifies which room request a RoomResult answers.
type Op int

const (
	OpCreateRoom Op = iota + 1
	OpJoinRoom
	OpJoinRandomRoom
)

func (o Op) String() string {
	switch o {
	case OpCreateRoom:
		return "create_room"
	case OpJoinRoom:
		return "join_room"
	case OpJoinRandomRoom:
		return "join_random_room"
	}
	return "unknown"
}

// Member is one entry of a room's member list.
type Member struct {
	ID       int32 `json:"id"`
	Inactive bool  `json:"inactive,omitempty"`
}

// RoomInfo is the backend's description of a room at join time. MasterID is
// zero when the backend does not assign a master client.
type RoomInfo struct {
	Name       string   `json:"name"`
	MaxPlayers int      `json:"maxPlayers"`
	IsOpen     bool     `json:"isOpen"`
	IsVisible  bool     `json:"isVisible"`
	Members    []Member `json:"members"`
	MasterID   int32    `json:"masterId,omitempty"`
}

// Notification is a message from the transport to the session layer.
type Notification interface {
	// Kind is the notification's stable wire name.
	Kind() string
}

// ConnectResult answers Connect.
type ConnectResult struct {
	Status  Status `json:"status"`
	UserID  string `json:"userId,omitempty"`
	Region  string `json:"region,omitempty"`
	Cluster string `json:"cluster,omitempty"`
}

// ConnectionError reports a failure of the underlying connection, either
// while connecting or afterwards.
type ConnectionError struct {
	Code int32 `json:"code"`
}

// Disconnected reports that the connection is gone.
type Disconnected struct{}

// RoomResult answers CreateRoom, JoinRoom and JoinRandomRoom.
type RoomResult struct {
	Op      Op       `json:"op"`
	Status  Status   `json:"status"`
	LocalID int32    `json:"localId,omitempty"`
	Room    RoomInfo `json:"room"`
}

// LeaveResult answers LeaveRoom. The backend also sends it unsolicited when
// the local member is removed from the room.
type LeaveResult struct {
	Status Status `json:"status"`
}

// MemberJoined reports a member entering the room, possibly the local one.
// Members is the backend's full member id list after the join.
type MemberJoined struct {
	PlayerID int32   `json:"playerId"`
	Members  []int32 `json:"members"`
	IsSelf   bool    `json:"isSelf,omitempty"`
}

// MemberLeft reports a member leaving. An inactive member keeps its slot and
// may rejoin with the same id.
type MemberLeft struct {
	PlayerID   int32 `json:"playerId"`
	IsInactive bool  `json:"isInactive,omitempty"`
}

// MasterChanged reports a backend-assigned master client.
type MasterChanged struct {
	PlayerID int32 `json:"playerId"`
}

// RoomPropertyChanged reports a room property changed by another member.
type RoomPropertyChanged struct {
	Property RoomProperty `json:"property"`
	Value    bool         `json:"value"`
}

// RoomListUpdated replaces the lobby room listing.
type RoomListUpdated struct {
	Names []string `json:"names"`
}

// CountsUpdated refreshes the global statistics.
type CountsUpdated struct {
	Counts
}

// EventReceived delivers an event raised by a room member.
type EventReceived struct {
	Sender  int32  `json:"sender"`
	Code    uint8  `json:"code"`
	Payload []byte `json:"payload"`
}

// Malformed stands in for a frame the transport received but could not
// decode. Frame is the frame's wire kind when it could still be read.
type Malformed struct {
	Frame  string `json:"frame,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (ConnectResult) Kind() string       { return "connect_result" }
func (ConnectionError) Kind() string     { return "connection_error" }
func (Disconnected) Kind() string        { return "disconnected" }
func (RoomResult) Kind() string          { return "room_result" }
func (LeaveResult) Kind() string         { return "leave_result" }
func (MemberJoined) Kind() string        { return "member_joined" }
func (MemberLeft) Kind() string          { return "member_left" }
func (MasterChanged) Kind() string       { return "master_changed" }
func (RoomPropertyChanged) Kind() string { return "room_property_changed" }
func (RoomListUpdated) Kind() string     { return "room_list" }
func (CountsUpdated) Kind() string       { return "counts" }
func (EventReceived) Kind() string       { return "event" }
func (Malformed) Kind() string           { return "malformed" }

// DecodeJSON decodes the JSON body of a notification of the given wire kind.
func DecodeJSON(kind string, data []byte) (Notification, error) {
	dec, ok := jsonDecoders[kind]
	if !ok {
		return nil, fmt.Errorf("unknown notification kind %q", kind)
	}
	return dec(data)
}

var jsonDecoders = map[string]func([]byte) (Notification, error){
	ConnectResult{}.Kind():       decodeJSON[ConnectResult],
	ConnectionError{}.Kind():     decodeJSON[ConnectionError],
	Disconnected{}.Kind():        decodeJSON[Disconnected],
	RoomResult{}.Kind():          decodeJSON[RoomResult],
	LeaveResult{}.Kind():         decodeJSON[LeaveResult],
	MemberJoined{}.Kind():        decodeJSON[MemberJoined],
	MemberLeft{}.Kind():          decodeJSON[MemberLeft],
	MasterChanged{}.Kind():       decodeJSON[MasterChanged],
	RoomPropertyChanged{}.Kind(): decodeJSON[RoomPropertyChanged],
	RoomListUpdated{}.Kind():     decodeJSON[RoomListUpdated],
	CountsUpdated{}.Kind():       decodeJSON[CountsUpdated],
	EventReceived{}.Kind():       decodeJSON[EventReceived],
}

func decodeJSON[N Notification](data []byte) (Notification, error) {
	var n N
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, err
		}
	}
	return n, nil
}
