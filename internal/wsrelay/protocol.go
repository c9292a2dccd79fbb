package wsrelay

import (
	"encoding/json"
	"fmt"

	"github.com/roomrelay/roomrelay/internal/relay"
)

// MessageType names a websocket message. Server messages use the
// notification kinds from the relay package; client requests use the
// constants below.
type MessageType string

const (
	MsgHello           MessageType = "hello"
	MsgDisconnect      MessageType = "disconnect"
	MsgSendEvent       MessageType = "send_event"
	MsgCreateRoom      MessageType = "create_room"
	MsgJoinRoom        MessageType = "join_room"
	MsgJoinRandomRoom  MessageType = "join_random_room"
	MsgLeaveRoom       MessageType = "leave_room"
	MsgSetRoomProperty MessageType = "set_room_property"
)

// Message is the envelope of every websocket text frame in both directions.
type Message struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// HelloPayload opens a session. It is the first message a client sends.
type HelloPayload struct {
	AppID      string `json:"appId"`
	AppVersion string `json:"appVersion"`
	UserName   string `json:"userName"`
	ClientID   string `json:"clientId"`
}

type SendEventPayload struct {
	Code    uint8       `json:"code"`
	Payload []byte      `json:"payload"`
	Scope   relay.Scope `json:"scope"`
}

type CreateRoomPayload struct {
	Name       string `json:"name"`
	MaxPlayers int    `json:"maxPlayers"`
}

type JoinRoomPayload struct {
	Name   string `json:"name"`
	Rejoin bool   `json:"rejoin,omitempty"`
}

type JoinRandomRoomPayload struct {
	MaxPlayers int `json:"maxPlayers"`
}

type SetRoomPropertyPayload struct {
	Property relay.RoomProperty `json:"property"`
	Value    bool               `json:"value"`
}

// Encode builds a frame. A nil payload is omitted.
func Encode(typ MessageType, seq uint64, payload any) ([]byte, error) {
	msg := Message{Type: typ, Seq: seq}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", typ, err)
		}
		msg.Payload = raw
	}
	return json.Marshal(msg)
}

// EncodeNotification builds the server frame carrying n.
func EncodeNotification(n relay.Notification, seq uint64) ([]byte, error) {
	return Encode(MessageType(n.Kind()), seq, n)
}

// DecodeNotification parses a server frame.
func DecodeNotification(data []byte) (relay.Notification, uint64, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, 0, fmt.Errorf("decode frame: %w", err)
	}
	n, err := relay.DecodeJSON(string(msg.Type), msg.Payload)
	if err != nil {
		return nil, msg.Seq, fmt.Errorf("decode %s: %w", msg.Type, err)
	}
	return n, msg.Seq, nil
}

// MalformedFrame describes a frame DecodeNotification rejected, naming its
// type when the envelope could still be read.
func MalformedFrame(data []byte, err error) relay.Malformed {
	var head struct {
		Type string `json:"type"`
	}
	json.Unmarshal(data, &head)
	return relay.Malformed{Frame: head.Type, Reason: err.Error()}
}

// DecodePayload unmarshals the payload of a client request into dst.
func DecodePayload(msg Message, dst any) error {
	if len(msg.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}
	return nil
}
