package relay

import (
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"

	apperrors "github.com/roomrelay/roomrelay/internal/errors"
)

func TestQueueOrderAndDrain(t *testing.T) {
	var q Queue
	q.Push(ConnectResult{UserID: "a"}, RoomListUpdated{Names: []string{"x"}})
	q.Push(Disconnected{})

	if got := q.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}

	var kinds []string
	n := q.DispatchAll(ListenerFunc(func(n Notification) {
		kinds = append(kinds, n.Kind())
	}))
	if n != 3 {
		t.Errorf("DispatchAll() = %d, want 3", n)
	}
	want := []string{"connect_result", "room_list", "disconnected"}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("dispatch order = %v, want %v", kinds, want)
	}
	if got := q.Len(); got != 0 {
		t.Errorf("Len() after drain = %d, want 0", got)
	}
}

func TestQueueDeferReentrantPushes(t *testing.T) {
	var q Queue
	q.Push(Disconnected{})

	calls := 0
	q.DispatchAll(ListenerFunc(func(n Notification) {
		calls++
		q.Push(Disconnected{})
	}))
	if calls != 1 {
		t.Errorf("listener called %d times, want 1", calls)
	}
	if got := q.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1 deferred notification", got)
	}
}

func TestQueueConcurrentPush(t *testing.T) {
	var q Queue
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(MemberLeft{PlayerID: int32(j)})
			}
		}()
	}
	wg.Wait()
	if got := len(q.Drain()); got != 800 {
		t.Errorf("drained %d, want 800", got)
	}
}

func TestStatusErr(t *testing.T) {
	if err := (Status{}).Err(apperrors.CodeOperationRejected); err != nil {
		t.Errorf("OK status Err() = %v, want nil", err)
	}

	err := Status{Code: StatusNoRandomMatchFound}.Err(apperrors.CodeOperationRejected)
	if !errors.Is(err, apperrors.ErrOperationRejected) {
		t.Fatalf("Err() = %v, want OPERATION_REJECTED", err)
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Status != StatusNoRandomMatchFound {
		t.Errorf("status not carried: %+v", appErr)
	}
	if appErr.Message != "no random match found" {
		t.Errorf("Message = %q", appErr.Message)
	}
	if StatusNoRandomMatchFound != 32760 {
		t.Errorf("StatusNoRandomMatchFound = %d, want 32760", StatusNoRandomMatchFound)
	}
}

func TestDecodeJSON(t *testing.T) {
	in := []Notification{
		ConnectResult{Status: Status{Code: 0}, UserID: "alice#1", Region: "jp", Cluster: "default"},
		RoomResult{Op: OpJoinRoom, LocalID: 2, Room: RoomInfo{Name: "r", MaxPlayers: 4, IsOpen: true, Members: []Member{{ID: 1}, {ID: 2}}}},
		MemberJoined{PlayerID: 3, Members: []int32{1, 2, 3}},
		CountsUpdated{Counts{GamesRunning: 1, PlayersIngame: 2, PlayersOnline: 5}},
		EventReceived{Sender: 1, Code: 33, Payload: []byte{1, 2, 3}},
		Disconnected{},
	}
	for _, n := range in {
		t.Run(n.Kind(), func(t *testing.T) {
			data, err := json.Marshal(n)
			if err != nil {
				t.Fatal(err)
			}
			got, err := DecodeJSON(n.Kind(), data)
			if err != nil {
				t.Fatalf("DecodeJSON: %v", err)
			}
			if !reflect.DeepEqual(got, n) {
				t.Errorf("DecodeJSON = %#v, want %#v", got, n)
			}
		})
	}

	if _, err := DecodeJSON("nope", nil); err == nil {
		t.Error("DecodeJSON(unknown kind) returned nil error")
	}
}
