// Package relay defines the contract between the session layer and a relay
// transport: the requests a transport accepts, the notifications it delivers,
// and the queue through which notifications reach the session thread.
//
// Requests return as soon as the transport has accepted them. Their outcome
// arrives later as a Notification, delivered to a Listener only from inside
// Transport.Service, on the goroutine that called Service.
package relay

// Scope selects which room members receive a raised event.
type Scope int

const (
	// ScopeOthers delivers to every member except the sender.
	ScopeOthers Scope = iota
	// ScopeAll delivers to every member including the sender.
	ScopeAll
)

func (s Scope) String() string {
	switch s {
	case ScopeOthers:
		return "others"
	case ScopeAll:
		return "all"
	}
	return "unknown"
}

// RoomProperty names a boolean room property the local member can change.
type RoomProperty int

const (
	PropertyOpen RoomProperty = iota
	PropertyVisible
)

func (p RoomProperty) String() string {
	switch p {
	case PropertyOpen:
		return "open"
	case PropertyVisible:
		return "visible"
	}
	return "unknown"
}

// Counts are the backend's global statistics for the application.
type Counts struct {
	GamesRunning  int `json:"gamesRunning"`
	PlayersIngame int `json:"playersIngame"`
	PlayersOnline int `json:"playersOnline"`
}

// Transport is the relay client binding the session layer drives.
//
// Implementations must not call the Listener outside Service. All request
// methods are fire-and-forget: a nil error means the request was accepted,
// not that it succeeded.
type Transport interface {
	// SetListener installs the receiver of notifications. It is called once,
	// before Connect.
	SetListener(l Listener)

	Connect(appID, appVersion, userName string) error
	Disconnect() error

	// Service drains pending notifications into the Listener. It must be
	// called on every iteration of the host loop; transports may drop the
	// connection when it is not called within their liveness interval.
	Service()

	SendEvent(code uint8, payload []byte, scope Scope) error
	CreateRoom(name string, maxPlayers int) error
	JoinRoom(name string, rejoin bool) error
	JoinRandomRoom(maxPlayers int) error
	LeaveRoom() error
	SetRoomProperty(prop RoomProperty, value bool) error
}
