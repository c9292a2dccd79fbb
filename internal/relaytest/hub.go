// Package relaytest provides an in-process relay backend. A Hub keeps rooms
// per application id and version, assigns player ids, and answers requests
// with the same notifications a real backend would send. Clients attach
// directly through Dial or over websockets through Handler.
package relaytest

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roomrelay/roomrelay/internal/relay"
)

var (
	ErrNotConnected     = errors.New("relaytest: not connected")
	ErrAlreadyConnected = errors.New("relaytest: already connected")
)

// Hub is an in-process relay backend.
type Hub struct {
	log     *zap.Logger
	region  string
	cluster string
	allowed map[string]bool

	mu   sync.Mutex
	apps map[string]*app
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(log *zap.Logger) HubOption {
	return func(h *Hub) {
		if log != nil {
			h.log = log
		}
	}
}

// WithRegion sets the region and cluster reported on connect.
func WithRegion(region, cluster string) HubOption {
	return func(h *Hub) {
		h.region = region
		h.cluster = cluster
	}
}

// WithAllowedApps restricts connections to the given application ids. Other
// ids fail to connect with relay.StatusInvalidAuthentication.
func WithAllowedApps(ids ...string) HubOption {
	return func(h *Hub) {
		h.allowed = make(map[string]bool, len(ids))
		for _, id := range ids {
			h.allowed[id] = true
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		log:     zap.NewNop(),
		region:  "local",
		cluster: "default",
		apps:    make(map[string]*app),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// app is one application id and version namespace.
type app struct {
	key   string
	peers map[*Peer]struct{}
	rooms map[string]*room
	order []string // room names in creation order
}

type room struct {
	name       string
	maxPlayers int
	open       bool
	visible    bool
	nextID     int32
	seats      []*seat // join order
}

type seat struct {
	id       int32
	userName string
	peer     *Peer
	inactive bool
}

func (r *room) info() relay.RoomInfo {
	members := make([]relay.Member, len(r.seats))
	for i, s := range r.seats {
		members[i] = relay.Member{ID: s.id, Inactive: s.inactive}
	}
	return relay.RoomInfo{
		Name:       r.name,
		MaxPlayers: r.maxPlayers,
		IsOpen:     r.open,
		IsVisible:  r.visible,
		Members:    members,
		MasterID:   r.master(),
	}
}

func (r *room) activeIDs() []int32 {
	var ids []int32
	for _, s := range r.seats {
		if !s.inactive {
			ids = append(ids, s.id)
		}
	}
	return ids
}

func (r *room) master() int32 {
	var lowest int32
	for _, s := range r.seats {
		if !s.inactive && (lowest == 0 || s.id < lowest) {
			lowest = s.id
		}
	}
	return lowest
}

func (r *room) full() bool {
	return len(r.seats) >= r.maxPlayers
}

// Peer is the hub side of one attached client. Requests are answered
// synchronously by calling deliver with each resulting notification; deliver
// must not block.
type Peer struct {
	hub     *Hub
	deliver func(relay.Notification)

	// guarded by hub.mu
	app      *app
	userName string
	userID   string
	room     *room
	seat     *seat
}

// Attach registers a new, unconnected peer.
func (h *Hub) Attach(deliver func(relay.Notification)) *Peer {
	return &Peer{hub: h, deliver: deliver}
}

// Connect joins the peer to the namespace of appID and appVersion.
func (p *Peer) Connect(appID, appVersion, userName string) error {
	h := p.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if p.app != nil {
		return ErrAlreadyConnected
	}
	if h.allowed != nil && !h.allowed[appID] {
		h.log.Info("rejecting unknown app", zap.String("app_id", appID))
		p.deliver(relay.ConnectResult{Status: relay.Status{Code: relay.StatusInvalidAuthentication}})
		return nil
	}

	key := appID + "/" + appVersion
	a, ok := h.apps[key]
	if !ok {
		a = &app{key: key, peers: make(map[*Peer]struct{}), rooms: make(map[string]*room)}
		h.apps[key] = a
	}
	a.peers[p] = struct{}{}
	p.app = a
	p.userName = userName
	p.userID = userName + "#" + uuid.NewString()[:8]

	h.log.Debug("peer connected", zap.String("app", key), zap.String("user_id", p.userID))
	p.deliver(relay.ConnectResult{UserID: p.userID, Region: h.region, Cluster: h.cluster})
	p.deliver(relay.RoomListUpdated{Names: a.roomNames()})
	p.deliver(relay.CountsUpdated{Counts: a.counts()})
	return nil
}

// Disconnect detaches the peer. A peer in a room stays in it as an inactive
// member and may rejoin later.
func (p *Peer) Disconnect() error {
	h := p.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if p.app == nil {
		return ErrNotConnected
	}
	p.detach()
	return nil
}

// detach must be called with hub.mu held.
func (p *Peer) detach() {
	a := p.app
	delete(a.peers, p)
	if p.room != nil {
		p.vacate(true)
	}
	p.app = nil
	p.hub.log.Debug("peer disconnected", zap.String("user_id", p.userID))
	if len(a.peers) == 0 && len(a.rooms) == 0 {
		delete(p.hub.apps, a.key)
	}
}

func (p *Peer) roomResult(op relay.Op, code int32) {
	p.deliver(relay.RoomResult{Op: op, Status: relay.Status{Code: code}})
}

// CreateRoom creates a room and seats the peer in it. An empty name gets a
// generated one.
func (p *Peer) CreateRoom(name string, maxPlayers int) error {
	h := p.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if p.app == nil {
		return ErrNotConnected
	}
	switch {
	case p.room != nil:
		p.roomResult(relay.OpCreateRoom, relay.StatusOperationNotAllowed)
		return nil
	case maxPlayers < 1 || maxPlayers > 255:
		p.roomResult(relay.OpCreateRoom, relay.StatusInvalidOperation)
		return nil
	}
	if name == "" {
		name = uuid.NewString()
	}
	a := p.app
	if _, ok := a.rooms[name]; ok {
		p.roomResult(relay.OpCreateRoom, relay.StatusGameIDAlreadyExists)
		return nil
	}
	r := &room{name: name, maxPlayers: maxPlayers, open: true, visible: true}
	a.rooms[name] = r
	a.order = append(a.order, name)
	h.log.Debug("room created", zap.String("app", a.key), zap.String("room", name))

	p.enter(relay.OpCreateRoom, r, nil)
	return nil
}

// JoinRoom seats the peer in an existing room.
func (p *Peer) JoinRoom(name string, rejoin bool) error {
	h := p.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if p.app == nil {
		return ErrNotConnected
	}
	if p.room != nil {
		p.roomResult(relay.OpJoinRoom, relay.StatusOperationNotAllowed)
		return nil
	}
	r, ok := p.app.rooms[name]
	if !ok {
		p.roomResult(relay.OpJoinRoom, relay.StatusGameDoesNotExist)
		return nil
	}

	var prev *seat
	for _, s := range r.seats {
		if s.userName != p.userName {
			continue
		}
		if !s.inactive {
			p.roomResult(relay.OpJoinRoom, relay.StatusJoinFailedActiveJoiner)
			return nil
		}
		if rejoin {
			prev = s
		}
	}
	if prev == nil {
		switch {
		case !r.open:
			p.roomResult(relay.OpJoinRoom, relay.StatusGameClosed)
			return nil
		case r.full():
			p.roomResult(relay.OpJoinRoom, relay.StatusGameFull)
			return nil
		}
	}
	p.enter(relay.OpJoinRoom, r, prev)
	return nil
}

// JoinRandomRoom seats the peer in the oldest open, visible room with a free
// slot. A nonzero maxPlayers only matches rooms of that capacity.
func (p *Peer) JoinRandomRoom(maxPlayers int) error {
	h := p.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if p.app == nil {
		return ErrNotConnected
	}
	if p.room != nil {
		p.roomResult(relay.OpJoinRandomRoom, relay.StatusOperationNotAllowed)
		return nil
	}
	for _, name := range p.app.order {
		r := p.app.rooms[name]
		if r.open && r.visible && !r.full() && (maxPlayers == 0 || r.maxPlayers == maxPlayers) {
			p.enter(relay.OpJoinRandomRoom, r, nil)
			return nil
		}
	}
	p.roomResult(relay.OpJoinRandomRoom, relay.StatusNoRandomMatchFound)
	return nil
}

// enter seats p in r, reusing prev when rejoining. hub.mu must be held.
func (p *Peer) enter(op relay.Op, r *room, prev *seat) {
	s := prev
	if s == nil {
		r.nextID++
		s = &seat{id: r.nextID, userName: p.userName}
		r.seats = append(r.seats, s)
	}
	oldMaster := r.master()
	s.inactive = false
	s.peer = p
	p.room = r
	p.seat = s

	p.deliver(relay.RoomResult{Op: op, LocalID: s.id, Room: r.info()})
	members := r.activeIDs()
	for _, o := range r.seats {
		if o.inactive || o.peer == nil {
			continue
		}
		o.peer.deliver(relay.MemberJoined{PlayerID: s.id, Members: members, IsSelf: o == s})
	}
	if m := r.master(); m != oldMaster && oldMaster != 0 {
		r.broadcast(relay.MasterChanged{PlayerID: m}, nil)
	}
	p.app.lobbyChanged()
}

// LeaveRoom removes the peer from its room for good.
func (p *Peer) LeaveRoom() error {
	h := p.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if p.app == nil {
		return ErrNotConnected
	}
	if p.room == nil {
		p.deliver(relay.LeaveResult{Status: relay.Status{Code: relay.StatusOperationNotAllowed}})
		return nil
	}
	p.deliver(relay.LeaveResult{})
	p.vacate(false)
	return nil
}

// vacate takes p out of its room. With inactive set the seat is kept for a
// rejoin. A room without active members is closed. hub.mu must be held.
func (p *Peer) vacate(inactive bool) {
	r, s, a := p.room, p.seat, p.app
	oldMaster := r.master()
	if inactive {
		s.inactive = true
		s.peer = nil
	} else {
		r.seats = slices.DeleteFunc(r.seats, func(o *seat) bool { return o == s })
	}
	p.room = nil
	p.seat = nil

	if len(r.activeIDs()) == 0 {
		delete(a.rooms, r.name)
		a.order = slices.DeleteFunc(a.order, func(n string) bool { return n == r.name })
		p.hub.log.Debug("room closed", zap.String("app", a.key), zap.String("room", r.name))
	} else {
		r.broadcast(relay.MemberLeft{PlayerID: s.id, IsInactive: inactive}, nil)
		if m := r.master(); m != oldMaster {
			r.broadcast(relay.MasterChanged{PlayerID: m}, nil)
		}
	}
	a.lobbyChanged()
}

// SendEvent relays an event to the other members of the peer's room, or to
// all of them with relay.ScopeAll.
func (p *Peer) SendEvent(code uint8, payload []byte, scope relay.Scope) error {
	h := p.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if p.app == nil {
		return ErrNotConnected
	}
	if p.room == nil {
		return fmt.Errorf("relaytest: send event: not in a room")
	}
	ev := relay.EventReceived{Sender: p.seat.id, Code: code, Payload: slices.Clone(payload)}
	skip := p.seat
	if scope == relay.ScopeAll {
		skip = nil
	}
	p.room.broadcast(ev, skip)
	return nil
}

// SetRoomProperty changes a property of the peer's room and tells the other
// members.
func (p *Peer) SetRoomProperty(prop relay.RoomProperty, value bool) error {
	h := p.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if p.app == nil {
		return ErrNotConnected
	}
	r := p.room
	if r == nil {
		return fmt.Errorf("relaytest: set %s: not in a room", prop)
	}
	switch prop {
	case relay.PropertyOpen:
		r.open = value
	case relay.PropertyVisible:
		r.visible = value
	default:
		return fmt.Errorf("relaytest: unknown room property %d", prop)
	}
	r.broadcast(relay.RoomPropertyChanged{Property: prop, Value: value}, p.seat)
	p.app.lobbyChanged()
	return nil
}

// broadcast delivers n to every active member except skip.
func (r *room) broadcast(n relay.Notification, skip *seat) {
	for _, s := range r.seats {
		if s == skip || s.inactive || s.peer == nil {
			continue
		}
		s.peer.deliver(n)
	}
}

func (a *app) roomNames() []string {
	names := make([]string, 0, len(a.order))
	for _, n := range a.order {
		if a.rooms[n].visible {
			names = append(names, n)
		}
	}
	return names
}

func (a *app) counts() relay.Counts {
	c := relay.Counts{GamesRunning: len(a.rooms), PlayersOnline: len(a.peers)}
	for _, r := range a.rooms {
		c.PlayersIngame += len(r.activeIDs())
	}
	return c
}

// lobbyChanged refreshes the room list and counts of every peer in the
// lobby.
func (a *app) lobbyChanged() {
	names := a.roomNames()
	counts := a.counts()
	for p := range a.peers {
		if p.room != nil {
			continue
		}
		p.deliver(relay.RoomListUpdated{Names: slices.Clone(names)})
		p.deliver(relay.CountsUpdated{Counts: counts})
	}
}

// Rooms returns the names of all rooms of an application namespace.
func (h *Hub) Rooms(appID, appVersion string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.apps[appID+"/"+appVersion]
	if !ok {
		return nil
	}
	return slices.Clone(a.order)
}

// Members returns the member list of a room, or false if it does not exist.
func (h *Hub) Members(appID, appVersion, name string) ([]relay.Member, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.apps[appID+"/"+appVersion]
	if !ok {
		return nil, false
	}
	r, ok := a.rooms[name]
	if !ok {
		return nil, false
	}
	return r.info().Members, true
}

// Kick removes a member from a room on the backend's initiative. The member
// gets an unsolicited relay.LeaveResult and the others see it leave. It
// reports whether an active member with that id was found.
func (h *Hub) Kick(appID, appVersion, name string, playerID int32) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.apps[appID+"/"+appVersion]
	if !ok {
		return false
	}
	r, ok := a.rooms[name]
	if !ok {
		return false
	}
	for _, s := range r.seats {
		if s.id != playerID || s.inactive || s.peer == nil {
			continue
		}
		p := s.peer
		h.log.Info("kicking member", zap.String("room", name), zap.Int32("player_id", playerID))
		p.deliver(relay.LeaveResult{})
		p.vacate(false)
		return true
	}
	return false
}
