package relaytest

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/roomrelay/roomrelay/internal/relay"
	"github.com/roomrelay/roomrelay/internal/wsrelay"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

// wsPeer attaches one websocket connection to the hub.
type wsPeer struct {
	conn *websocket.Conn
	log  *zap.Logger
	peer *Peer

	mu     sync.Mutex
	send   chan []byte
	seq    uint64
	closed bool
}

func (w *wsPeer) writePump() {
	defer w.conn.Close()
	for msg := range w.send {
		w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := w.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// deliver is called by the hub with its lock held, so it never blocks: a
// client that can't keep up is disconnected.
func (w *wsPeer) deliver(n relay.Notification) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.seq++
	data, err := wsrelay.EncodeNotification(n, w.seq)
	if err != nil {
		w.log.Error("encode notification", zap.String("kind", n.Kind()), zap.Error(err))
		return
	}
	select {
	case w.send <- data:
	default:
		w.log.Warn("ws client too slow, disconnecting")
		w.conn.Close()
	}
}

func (w *wsPeer) close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.send)
	}
	w.mu.Unlock()
}

// Handler serves the hub over websockets using the wsrelay protocol.
func (h *Hub) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		// development relay: accept any origin
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			h.log.Warn("ws upgrade error", zap.Error(err))
			return
		}
		w := &wsPeer{
			conn: conn,
			log:  h.log.With(zap.String("remote", r.RemoteAddr)),
			send: make(chan []byte, sendBuffer),
		}
		w.peer = h.Attach(w.deliver)
		go w.writePump()
		go w.readLoop()
	})
}

func (w *wsPeer) readLoop() {
	defer func() {
		// a vanished client stays in its room as an inactive member
		w.peer.Disconnect()
		w.close()
		w.log.Debug("ws client disconnected")
	}()
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsrelay.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			w.log.Warn("malformed frame", zap.Error(err))
			continue
		}
		if msg.Type == wsrelay.MsgDisconnect {
			return
		}
		if err := w.handle(msg); err != nil {
			w.log.Info("request failed", zap.String("type", string(msg.Type)), zap.Error(err))
		}
	}
}

func (w *wsPeer) handle(msg wsrelay.Message) error {
	p := w.peer
	switch msg.Type {
	case wsrelay.MsgHello:
		var req wsrelay.HelloPayload
		if err := wsrelay.DecodePayload(msg, &req); err != nil {
			return err
		}
		w.log.Debug("hello", zap.String("user", req.UserName), zap.String("client_id", req.ClientID))
		return p.Connect(req.AppID, req.AppVersion, req.UserName)
	case wsrelay.MsgSendEvent:
		var req wsrelay.SendEventPayload
		if err := wsrelay.DecodePayload(msg, &req); err != nil {
			return err
		}
		return p.SendEvent(req.Code, req.Payload, req.Scope)
	case wsrelay.MsgCreateRoom:
		var req wsrelay.CreateRoomPayload
		if err := wsrelay.DecodePayload(msg, &req); err != nil {
			return err
		}
		return p.CreateRoom(req.Name, req.MaxPlayers)
	case wsrelay.MsgJoinRoom:
		var req wsrelay.JoinRoomPayload
		if err := wsrelay.DecodePayload(msg, &req); err != nil {
			return err
		}
		return p.JoinRoom(req.Name, req.Rejoin)
	case wsrelay.MsgJoinRandomRoom:
		var req wsrelay.JoinRandomRoomPayload
		if err := wsrelay.DecodePayload(msg, &req); err != nil {
			return err
		}
		return p.JoinRandomRoom(req.MaxPlayers)
	case wsrelay.MsgLeaveRoom:
		return p.LeaveRoom()
	case wsrelay.MsgSetRoomProperty:
		var req wsrelay.SetRoomPropertyPayload
		if err := wsrelay.DecodePayload(msg, &req); err != nil {
			return err
		}
		return p.SetRoomProperty(req.Property, req.Value)
	}
	w.log.Warn("unknown message type", zap.String("type", string(msg.Type)))
	return nil
}

// RoomSummary is one room as listed by RoomsHandler.
type RoomSummary struct {
	Name    string         `json:"name"`
	Members []relay.Member `json:"members"`
}

// RoomsHandler lists the rooms of the namespace given by the app and version
// query parameters as JSON.
func (h *Hub) RoomsHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		appID, version := r.URL.Query().Get("app"), r.URL.Query().Get("version")
		if appID == "" || version == "" {
			http.Error(rw, "app and version are required", http.StatusBadRequest)
			return
		}
		rooms := []RoomSummary{}
		for _, name := range h.Rooms(appID, version) {
			if members, ok := h.Members(appID, version, name); ok {
				rooms = append(rooms, RoomSummary{Name: name, Members: members})
			}
		}
		rw.Header().Set("Content-Type", "application/json")
		json.NewEncoder(rw).Encode(rooms)
	})
}
