package server

import (
	"encoding/json"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/laddergame/board"
	"github.com/wfunc/laddergame/broadcast"
	"github.com/wfunc/laddergame/logger"
	"github.com/wfunc/laddergame/network"
	"github.com/wfunc/laddergame/room"
	"github.com/wfunc/laddergame/session"
	"github.com/wfunc/laddergame/timer"
)

func TestMain(m *testing.M) {
	logger.Init(true)
	os.Exit(m.Run())
}

type frame struct {
	msgID uint16
	data  []byte
}

// MockConnection records sent frames and whether Close was called.
type MockConnection struct {
	mu     sync.Mutex
	sent   []frame
	closed bool
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, frame{msgID: msgID, data: data})
	return nil
}

func (m *MockConnection) frames() []frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]frame(nil), m.sent...)
}

func (m *MockConnection) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func (m *MockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockConnection) RemoteAddr() net.Addr                { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration) {}

type fixedRoller struct{ roll int }

func (r fixedRoller) Roll() int { return r.roll }

func newTestServer(t *testing.T, maxPlayers int) (*GameServer, *session.Manager) {
	t.Helper()

	b, err := board.New(100, nil)
	if err != nil {
		t.Fatalf("board.New returned error: %v", err)
	}

	sessions := session.NewManager()
	bc := broadcast.NewRoomBroadcaster(sessions)
	timers := timer.NewManager()
	t.Cleanup(timers.Stop)

	rooms := room.NewManager(b, fixedRoller{roll: 1}, room.Config{
		MaxPlayers:     maxPlayers,
		FinishedGrace:  time.Hour,
		WaitingIdle:    time.Hour,
		ReconnectGrace: time.Hour,
		SweepInterval:  time.Hour,
	}, bc, timers)
	t.Cleanup(rooms.Shutdown)

	return &GameServer{
		roomManager:    rooms,
		sessionManager: sessions,
		shutdownChan:   make(chan struct{}),
	}, sessions
}

func newTestSession(sessions *session.Manager, id, playerID string) (*session.Session, *MockConnection) {
	conn := &MockConnection{}
	sess := session.NewSession(id, conn)
	sess.Bind(playerID, "player "+playerID)
	sessions.Add(sess)
	return sess, conn
}

func joinPacket(t *testing.T, roomID string) *network.Packet {
	t.Helper()
	data, err := json.Marshal(joinRequest{RoomID: roomID})
	if err != nil {
		t.Fatalf("marshal join request: %v", err)
	}
	return &network.Packet{MsgID: network.MsgTypeRoomJoin, Data: data}
}

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

// A session mapped to a live room must not be remapped by a join for a
// different room: the old game would keep a connected player who can never
// act, wedging its turn rotation.
func TestJoinRoom_SecondRoomRejected(t *testing.T) {
	s, sessions := newTestServer(t, 2)

	sessA, connA := newTestSession(sessions, "s1", "a")
	sessB, _ := newTestSession(sessions, "s2", "b")
	defer sessA.Close()
	defer sessB.Close()

	s.handleJoinRoom(sessA, joinPacket(t, "r1"))
	s.handleJoinRoom(sessB, joinPacket(t, "r1")) // fills the room, auto-starts

	s.handleJoinRoom(sessA, joinPacket(t, "r2"))

	if got := sessA.GetRoomID(); got != "r1" {
		t.Errorf("session room = %q after rejected join, want r1", got)
	}
	if _, exists := s.roomManager.Get("r2"); exists {
		t.Error("rejected join must not create the second room")
	}

	// The offender gets an error frame; nobody else does.
	waitFor(t, func() bool {
		for _, f := range connA.frames() {
			if f.msgID == network.MsgTypeError {
				return true
			}
		}
		return false
	})
	for _, f := range connA.frames() {
		if f.msgID != network.MsgTypeError {
			continue
		}
		var e errorPayload
		if err := json.Unmarshal(f.data, &e); err != nil {
			t.Fatalf("unmarshal error payload: %v", err)
		}
		if e.Code != "already_in_room" {
			t.Errorf("error code = %q, want already_in_room", e.Code)
		}
	}

	// r1 is unharmed: a is still connected and can take the first turn.
	r, _ := s.roomManager.Get("r1")
	info, err := r.Info()
	if err != nil {
		t.Fatalf("Info returned error: %v", err)
	}
	if info.Connected != 2 {
		t.Errorf("connected = %d, want 2", info.Connected)
	}
	if _, err := s.roomManager.RequestTurn("r1", "a"); err != nil {
		t.Errorf("a's turn in r1 failed after the rejected join: %v", err)
	}
}

// A mapping to a room that no longer exists is stale, not binding: the
// session may join elsewhere.
func TestJoinRoom_StaleRoomMappingCleared(t *testing.T) {
	s, sessions := newTestServer(t, 4)

	sess, _ := newTestSession(sessions, "s1", "a")
	defer sess.Close()
	sess.SetRoomID("gone")

	s.handleJoinRoom(sess, joinPacket(t, "r2"))

	if got := sess.GetRoomID(); got != "r2" {
		t.Errorf("session room = %q, want r2", got)
	}
	if _, exists := s.roomManager.Get("r2"); !exists {
		t.Error("join after a stale mapping should create the room")
	}
}

// Rejoining the room the session is already mapped to stays a reconnect.
func TestJoinRoom_SameRoomRejoin(t *testing.T) {
	s, sessions := newTestServer(t, 4)

	sess, conn := newTestSession(sessions, "s1", "a")
	defer sess.Close()

	s.handleJoinRoom(sess, joinPacket(t, "r1"))
	s.handleJoinRoom(sess, joinPacket(t, "r1"))

	for _, f := range conn.frames() {
		if f.msgID == network.MsgTypeError {
			t.Fatalf("rejoin of the same room sent an error frame: %s", f.data)
		}
	}
	if got := sess.GetRoomID(); got != "r1" {
		t.Errorf("session room = %q, want r1", got)
	}
}

// Shutdown must close every session so connection readers unblock.
func TestShutdown_ClosesSessions(t *testing.T) {
	s, sessions := newTestServer(t, 4)

	_, conn := newTestSession(sessions, "s1", "a")

	s.Shutdown()

	if !conn.isClosed() {
		t.Error("Shutdown should close the session's connection")
	}
	if sessions.Count() != 0 {
		t.Errorf("session count = %d after Shutdown, want 0", sessions.Count())
	}
}
