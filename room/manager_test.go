package room

import (
	"errors"
	"testing"
	"time"

	"github.com/wfunc/laddergame/game"
	"github.com/wfunc/laddergame/timer"
)

func newTestManager(t *testing.T, cfg Config) (*Manager, *recordingBroadcaster) {
	t.Helper()
	bc := &recordingBroadcaster{}
	timers := timer.NewManager()
	t.Cleanup(timers.Stop)

	m := NewManager(mustBoard(t, 100, nil), &scriptedRoller{rolls: []int{1}}, cfg, bc, timers)
	t.Cleanup(m.Shutdown)
	return m, bc
}

func defaultConfig() Config {
	return Config{
		MaxPlayers:     4,
		FinishedGrace:  time.Hour,
		WaitingIdle:    time.Hour,
		ReconnectGrace: time.Hour,
		SweepInterval:  time.Hour,
	}
}

func TestManager_JoinCreatesRoom(t *testing.T) {
	m, _ := newTestManager(t, defaultConfig())

	if _, err := m.Join("r1", "a", "Alice"); err != nil {
		t.Fatalf("Join returned error: %v", err)
	}
	if _, exists := m.Get("r1"); !exists {
		t.Error("Join should create the room on first contact")
	}
	if m.Count() != 1 {
		t.Errorf("Count = %d, want 1", m.Count())
	}
}

func TestManager_UnknownRoom(t *testing.T) {
	m, _ := newTestManager(t, defaultConfig())

	if _, err := m.RequestTurn("nope", "a"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("RequestTurn: err = %v, want ErrRoomNotFound", err)
	}
	if _, err := m.Leave("nope", "a"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Leave: err = %v, want ErrRoomNotFound", err)
	}
	if _, err := m.StartGame("nope", "a"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("StartGame: err = %v, want ErrRoomNotFound", err)
	}
}

func TestManager_RoomsAreIndependent(t *testing.T) {
	m, _ := newTestManager(t, defaultConfig())

	m.Join("r1", "a", "Alice")
	m.Join("r1", "b", "Bob")
	m.Join("r2", "a", "Alice")

	if m.Count() != 2 {
		t.Fatalf("Count = %d, want 2", m.Count())
	}

	// Starting r1 must not affect r2.
	if _, err := m.StartGame("r1", "a"); err != nil {
		t.Fatalf("StartGame(r1) returned error: %v", err)
	}

	r2, _ := m.Get("r2")
	info, _ := r2.Info()
	if info.Status != game.StatusWaiting {
		t.Errorf("r2 status = %v, want waiting", info.Status)
	}
}

func TestManager_SweepEvictsFinished(t *testing.T) {
	cfg := defaultConfig()
	cfg.FinishedGrace = 0 // evict finished rooms on the next sweep

	bc := &recordingBroadcaster{}
	timers := timer.NewManager()
	t.Cleanup(timers.Stop)

	// A 6-cell board and a scripted 6 finishes the game on the first turn.
	m := NewManager(mustBoard(t, 6, nil), &scriptedRoller{rolls: []int{6}}, cfg, bc, timers)
	t.Cleanup(m.Shutdown)

	m.Join("r1", "a", "Alice")
	m.Join("r1", "b", "Bob")
	m.StartGame("r1", "a")
	if _, err := m.RequestTurn("r1", "a"); err != nil {
		t.Fatalf("winning turn returned error: %v", err)
	}

	m.Sweep()
	if _, exists := m.Get("r1"); exists {
		t.Error("finished room past grace should be swept")
	}
}

func TestManager_SweepKeepsActiveRooms(t *testing.T) {
	cfg := defaultConfig()
	m, _ := newTestManager(t, cfg)

	m.Join("r1", "a", "Alice")
	m.Join("r1", "b", "Bob")
	m.StartGame("r1", "a")

	m.Sweep()
	if _, exists := m.Get("r1"); !exists {
		t.Error("in-progress room must never be swept")
	}
}

func TestManager_SweepEvictsEmptyWaiting(t *testing.T) {
	m, _ := newTestManager(t, defaultConfig())

	m.Join("r1", "a", "Alice")
	m.Leave("r1", "a")

	m.Sweep()
	if _, exists := m.Get("r1"); exists {
		t.Error("empty waiting room should be swept")
	}
}

func TestManager_SweepEvictsIdleWaiting(t *testing.T) {
	cfg := defaultConfig()
	cfg.WaitingIdle = time.Millisecond
	m, _ := newTestManager(t, cfg)

	m.Join("r1", "a", "Alice")
	time.Sleep(10 * time.Millisecond)

	m.Sweep()
	if _, exists := m.Get("r1"); exists {
		t.Error("idle waiting room should be swept")
	}
}

func TestManager_DisconnectGraceDropsWaitingPlayer(t *testing.T) {
	cfg := defaultConfig()
	cfg.ReconnectGrace = time.Hour
	m, _ := newTestManager(t, cfg)

	m.Join("r1", "a", "Alice")
	m.Join("r1", "b", "Bob")

	if _, err := m.Disconnect("r1", "b"); err != nil {
		t.Fatalf("Disconnect returned error: %v", err)
	}

	// Grace not expired: the player is kept, marked disconnected.
	r, _ := m.Get("r1")
	info, _ := r.Info()
	if info.Players != 2 || info.Connected != 1 {
		t.Errorf("players=%d connected=%d, want 2/1 before grace expiry", info.Players, info.Connected)
	}

	// Expire the grace by hand.
	m.dropIfStillGone("r1", "b")
	info, _ = r.Info()
	if info.Players != 1 {
		t.Errorf("players = %d after grace expiry, want 1", info.Players)
	}
}

func TestManager_DisconnectInProgressKeepsPlayer(t *testing.T) {
	m, _ := newTestManager(t, defaultConfig())

	m.Join("r1", "a", "Alice")
	m.Join("r1", "b", "Bob")
	m.StartGame("r1", "a")

	if _, err := m.Disconnect("r1", "a"); err != nil {
		t.Fatalf("Disconnect returned error: %v", err)
	}

	r, _ := m.Get("r1")
	info, _ := r.Info()
	if info.Players != 2 {
		t.Errorf("players = %d, want 2 (in-progress players are never removed)", info.Players)
	}
	if info.Snapshot.ActivePlayerID != "b" {
		t.Errorf("active = %s, want b after the active player disconnected", info.Snapshot.ActivePlayerID)
	}

	// Even if the grace handler fires, an in-progress player stays.
	m.dropIfStillGone("r1", "a")
	info, _ = r.Info()
	if info.Players != 2 {
		t.Errorf("players = %d after grace handler, want 2", info.Players)
	}
}
