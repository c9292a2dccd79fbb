package session

import (
	"fmt"
	"slices"

	"github.com/roomrelay/roomrelay/internal/relay"
)

// MasterPolicy selects how the master client of a room is determined.
type MasterPolicy int

const (
	// MasterLowestActive makes the numerically smallest active member the
	// master, recomputed on every membership change.
	MasterLowestActive MasterPolicy = iota
	// MasterBackend trusts the master id the backend reports, falling back to
	// the lowest active member when the reported id is not an active member.
	MasterBackend
)

var masterPolicyNames = map[MasterPolicy]string{
	MasterLowestActive: "lowest_active",
	MasterBackend:      "backend",
}

func (p MasterPolicy) String() string {
	if n, ok := masterPolicyNames[p]; ok {
		return n
	}
	return "unknown"
}

// ParseMasterPolicy parses the configuration name of a policy.
func ParseMasterPolicy(s string) (MasterPolicy, error) {
	for p, n := range masterPolicyNames {
		if n == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown master policy %q", s)
}

// RoomState is the local view of the room the session is in.
type RoomState struct {
	Name       string
	MaxPlayers int
	IsOpen     bool
	IsVisible  bool
	Members    []relay.Member // join order
	MasterID   int32
	LocalID    int32
}

func (r *RoomState) clone() RoomState {
	c := *r
	c.Members = slices.Clone(r.Members)
	return c
}

func (r *RoomState) index(id int32) int {
	return slices.IndexFunc(r.Members, func(m relay.Member) bool { return m.ID == id })
}

func (r *RoomState) isActive(id int32) bool {
	i := r.index(id)
	return i >= 0 && !r.Members[i].Inactive
}

// ActiveCount is the number of members currently present. Inactive members
// still reserve a slot but are not counted.
func (r *RoomState) ActiveCount() int {
	n := 0
	for _, m := range r.Members {
		if !m.Inactive {
			n++
		}
	}
	return n
}

// ActiveIDs returns the ids of present members in join order.
func (r *RoomState) ActiveIDs() []int32 {
	ids := make([]int32, 0, len(r.Members))
	for _, m := range r.Members {
		if !m.Inactive {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// addMember appends id, or reactivates it when it is already known.
func (r *RoomState) addMember(id int32) {
	if i := r.index(id); i >= 0 {
		r.Members[i].Inactive = false
		return
	}
	r.Members = append(r.Members, relay.Member{ID: id})
}

func (r *RoomState) removeMember(id int32, inactive bool) bool {
	i := r.index(id)
	if i < 0 {
		return false
	}
	if inactive {
		r.Members[i].Inactive = true
	} else {
		r.Members = slices.Delete(r.Members, i, i+1)
	}
	return true
}

func (r *RoomState) lowestActive() int32 {
	var lowest int32
	for _, m := range r.Members {
		if !m.Inactive && (lowest == 0 || m.ID < lowest) {
			lowest = m.ID
		}
	}
	return lowest
}

// registry caches the lobby listing, global counts and the current room. It
// is mutated only by the router.
type registry struct {
	policy    MasterPolicy
	room      *RoomState
	roomNames []string
	counts    relay.Counts
}

// enter installs the room described by a successful join or create.
func (g *registry) enter(localID int32, info relay.RoomInfo) {
	r := &RoomState{
		Name:       info.Name,
		MaxPlayers: info.MaxPlayers,
		IsOpen:     info.IsOpen,
		IsVisible:  info.IsVisible,
		Members:    make([]relay.Member, 0, len(info.Members)+1),
		LocalID:    localID,
	}
	for _, m := range info.Members {
		if r.index(m.ID) < 0 {
			r.Members = append(r.Members, m)
		}
	}
	r.addMember(localID)
	g.room = r
	g.updateMaster(info.MasterID)
}

func (g *registry) leave() {
	g.room = nil
}

// memberJoined records a join. It reports whether the master changed.
func (g *registry) memberJoined(id int32, members []int32) bool {
	r := g.room
	r.addMember(id)
	for _, m := range members {
		if r.index(m) < 0 {
			r.addMember(m)
		}
	}
	return g.updateMaster(0)
}

// memberLeft records a departure. The local member is never removed here;
// its own removal arrives as a leave result.
func (g *registry) memberLeft(id int32, inactive bool) bool {
	r := g.room
	if id == r.LocalID {
		return false
	}
	if !r.removeMember(id, inactive) {
		return false
	}
	return g.updateMaster(0)
}

// updateMaster recomputes the master. reported is a backend-assigned id, or
// zero when none was supplied. It reports whether the master changed.
func (g *registry) updateMaster(reported int32) bool {
	r := g.room
	prev := r.MasterID
	switch {
	case g.policy == MasterBackend && reported != 0 && r.isActive(reported):
		r.MasterID = reported
	case g.policy == MasterBackend && r.isActive(r.MasterID):
	default:
		r.MasterID = r.lowestActive()
	}
	return r.MasterID != prev
}

func (g *registry) setProperty(prop relay.RoomProperty, value bool) {
	switch prop {
	case relay.PropertyOpen:
		g.room.IsOpen = value
	case relay.PropertyVisible:
		g.room.IsVisible = value
	}
}

func (g *registry) setRoomNames(names []string) {
	g.roomNames = slices.Clone(names)
}
