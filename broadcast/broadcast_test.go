package broadcast

import (
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/laddergame/game"
	"github.com/wfunc/laddergame/logger"
	"github.com/wfunc/laddergame/network"
	"github.com/wfunc/laddergame/session"
)

func TestMain(m *testing.M) {
	logger.Init(true)
	os.Exit(m.Run())
}

type recordingConn struct {
	mu   sync.Mutex
	sent []uint16
}

func (c *recordingConn) Send(msgID uint16, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msgID)
	return nil
}

func (c *recordingConn) sentIDs() []uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint16(nil), c.sent...)
}

func (c *recordingConn) ReadPacket() (*network.Packet, error) { return nil, nil }
func (c *recordingConn) Close() error                         { return nil }
func (c *recordingConn) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (c *recordingConn) SetHeartbeat(interval time.Duration)  {}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestBroadcastEvents_OrderAndTargeting(t *testing.T) {
	sessions := session.NewManager()

	connA, connB, connC := &recordingConn{}, &recordingConn{}, &recordingConn{}

	inRoomA := session.NewSession("s1", connA)
	inRoomA.SetRoomID("r1")
	inRoomB := session.NewSession("s2", connB)
	inRoomB.SetRoomID("r1")
	elsewhere := session.NewSession("s3", connC)
	elsewhere.SetRoomID("r2")

	for _, s := range []*session.Session{inRoomA, inRoomB, elsewhere} {
		sessions.Add(s)
		defer s.Close()
	}

	b := NewRoomBroadcaster(sessions)
	events := []game.Event{
		{Type: game.EventTurnResult, Payload: game.TurnResultPayload{PlayerID: "a", Roll: 3}},
		{Type: game.EventGameState, Payload: game.Snapshot{Status: "in_progress"}},
		{Type: game.EventGameWinner, Payload: game.WinnerPayload{PlayerID: "a"}},
	}

	if err := b.BroadcastEvents("r1", events); err != nil {
		t.Fatalf("BroadcastEvents returned error: %v", err)
	}

	want := []uint16{network.MsgTypeDiceRoll, network.MsgTypeGameState, network.MsgTypeGameWinner}
	for name, conn := range map[string]*recordingConn{"a": connA, "b": connB} {
		waitFor(t, func() bool { return len(conn.sentIDs()) == len(want) })
		for i, id := range conn.sentIDs() {
			if id != want[i] {
				t.Errorf("member %s frame %d = %d, want %d (generation order)", name, i, id, want[i])
			}
		}
	}

	time.Sleep(20 * time.Millisecond)
	if got := connC.sentIDs(); len(got) != 0 {
		t.Errorf("session outside the room received %d frames", len(got))
	}
}

func TestMsgID_UnknownEvent(t *testing.T) {
	if _, err := MsgID(game.EventType("bogus")); err == nil {
		t.Error("MsgID should reject unknown event types")
	}
}
