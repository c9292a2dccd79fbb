package session

import "encoding/json"

// ConnectionState is the single logical lifecycle state of a Session.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	ConnectedToLobby
	JoiningOrInRoom
)

var stateNames = map[ConnectionState]string{
	Disconnected:     "disconnected",
	Connecting:       "connecting",
	ConnectedToLobby: "connected_to_lobby",
	JoiningOrInRoom:  "joining_or_in_room",
}

func (s ConnectionState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s ConnectionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// transitions lists the states reachable from each state. Any state may
// drop to Disconnected.
var transitions = map[ConnectionState][]ConnectionState{
	Disconnected:     {Connecting},
	Connecting:       {ConnectedToLobby, Disconnected},
	ConnectedToLobby: {JoiningOrInRoom, Disconnected},
	JoiningOrInRoom:  {ConnectedToLobby, Disconnected},
}

// CanTransition reports whether to is reachable from s in one step.
func (s ConnectionState) CanTransition(to ConnectionState) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
