package app

import (
	"fmt"

	"github.com/roomrelay/roomrelay/internal/codec"
	"github.com/roomrelay/roomrelay/internal/relay"
	"github.com/roomrelay/roomrelay/internal/session"
	"github.com/roomrelay/roomrelay/internal/tui/views/eventlog"
)

// Inbox collects session callbacks until the model drains them. Callbacks
// only run inside Session.Service, which the model calls from Update, so
// the inbox needs no locking.
type Inbox struct {
	entries []eventlog.Entry
	noMatch bool
}

func NewInbox() *Inbox {
	return &Inbox{}
}

func (in *Inbox) add(kind eventlog.Kind, format string, args ...any) {
	in.entries = append(in.entries, eventlog.Note(kind, fmt.Sprintf(format, args...)))
}

func (in *Inbox) member(kind eventlog.Kind, id int32, message string) {
	in.entries = append(in.entries, eventlog.Member(kind, id, message))
}

// result logs the answer to a room or connect request.
func (in *Inbox) result(what string) func(error) {
	return func(err error) {
		if err != nil {
			in.add(eventlog.KindError, "%s failed: %v", what, err)
			return
		}
		in.add(eventlog.KindRoom, "%s ok", what)
	}
}

// drain returns the collected entries and whether a random join found no
// room since the last drain.
func (in *Inbox) drain() ([]eventlog.Entry, bool) {
	entries, noMatch := in.entries, in.noMatch
	in.entries, in.noMatch = nil, false
	return entries, noMatch
}

// Handlers returns the session callbacks feeding this inbox.
func (in *Inbox) Handlers() session.Handlers {
	return session.Handlers{
		OnStateChange: func(from, to session.ConnectionState) {
			in.add(eventlog.KindConn, "%s -> %s", from, to)
		},
		OnConnect: func(err error) {
			if err != nil {
				in.add(eventlog.KindError, "connect failed: %v", err)
				return
			}
			in.add(eventlog.KindConn, "connected")
		},
		OnConnectionError: func(err error) {
			in.add(eventlog.KindError, "connection error: %v", err)
		},
		OnDisconnect: func() {
			in.add(eventlog.KindConn, "disconnected")
		},
		OnCreateRoom: in.result("create room"),
		OnJoinRoom:   in.result("join room"),
		OnJoinRandomRoom: func(err error) {
			if session.IsNoRandomMatch(err) {
				in.noMatch = true
				in.add(eventlog.KindRoom, "no random room, creating one")
				return
			}
			in.result("join random room")(err)
		},
		OnLeaveRoom: in.result("leave room"),
		OnMemberJoined: func(id int32, isSelf bool) {
			if isSelf {
				in.member(eventlog.KindMember, id, "joined (local)")
				return
			}
			in.member(eventlog.KindMember, id, "joined")
		},
		OnMemberLeft: func(id int32, inactive bool) {
			if inactive {
				in.member(eventlog.KindMember, id, "went inactive")
				return
			}
			in.member(eventlog.KindMember, id, "left")
		},
		OnMasterChanged: func(id int32) {
			in.member(eventlog.KindMaster, id, "is master")
		},
		OnRoomPropertyChanged: func(prop relay.RoomProperty, value bool) {
			in.add(eventlog.KindRoom, "%s = %t", prop, value)
		},
		OnRoomListUpdate: func(names []string) {
			in.add(eventlog.KindRoom, "%d rooms listed", len(names))
		},
		OnCustomEvent: func(sender int32, code uint8, v codec.Value) {
			in.entries = append(in.entries, eventlog.Received(sender, code, v.Type().String(), describe(v)))
		},
		OnError: func(err error) {
			in.add(eventlog.KindError, "%v", err)
		},
	}
}

func describe(v codec.Value) string {
	switch v := v.(type) {
	case codec.Array[codec.Triangle]:
		return fmt.Sprintf("%d triangles", len(v))
	case codec.Grid[codec.Vec4]:
		return fmt.Sprintf("%dx%d", v.Cols, v.Rows)
	}
	return ""
}
