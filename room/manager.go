package room

import (
	"sync"
	"time"

	"github.com/wfunc/laddergame/board"
	"github.com/wfunc/laddergame/game"
	"github.com/wfunc/laddergame/logger"
	"github.com/wfunc/laddergame/timer"
)

// Config carries the room lifecycle knobs.
type Config struct {
	MaxPlayers     int
	FinishedGrace  time.Duration // how long a finished room lingers
	WaitingIdle    time.Duration // idle timeout for rooms that never start
	ReconnectGrace time.Duration // how long a waiting room keeps a disconnected player
	SweepInterval  time.Duration
}

// Manager owns the roomID -> Room mapping. The map has its own lock, held
// only for lookup, insert and delete; it is never held across a state
// transition, which runs on the room's own worker.
type Manager struct {
	rooms map[string]*Room
	mutex sync.RWMutex

	board       *board.Board
	roller      game.Roller
	cfg         Config
	broadcaster Broadcaster
	timers      *timer.Manager
	sweepTask   int64
}

// NewManager creates a manager and arms the periodic sweep.
func NewManager(b *board.Board, roller game.Roller, cfg Config, broadcaster Broadcaster, timers *timer.Manager) *Manager {
	if cfg.MaxPlayers < 2 {
		cfg.MaxPlayers = 2
	}
	m := &Manager{
		rooms:       make(map[string]*Room),
		board:       b,
		roller:      roller,
		cfg:         cfg,
		broadcaster: broadcaster,
		timers:      timers,
	}
	m.sweepTask = timers.Schedule(cfg.SweepInterval, cfg.SweepInterval, m.Sweep)
	return m
}

// Join routes a join to the room, creating it on first contact.
func (m *Manager) Join(roomID, playerID, displayName string) ([]game.Event, error) {
	r := m.getOrCreate(roomID)
	return r.Join(playerID, displayName)
}

// Leave removes (pre-start) or disconnects (post-start) a player.
func (m *Manager) Leave(roomID, playerID string) ([]game.Event, error) {
	r, exists := m.Get(roomID)
	if !exists {
		return nil, ErrRoomNotFound
	}
	return r.Leave(playerID)
}

// StartGame begins the game on behalf of the room owner.
func (m *Manager) StartGame(roomID, playerID string) ([]game.Event, error) {
	r, exists := m.Get(roomID)
	if !exists {
		return nil, ErrRoomNotFound
	}
	return r.Start(playerID)
}

// RequestTurn enqueues a take-turn for the player's room.
func (m *Manager) RequestTurn(roomID, playerID string) ([]game.Event, error) {
	r, exists := m.Get(roomID)
	if !exists {
		return nil, ErrRoomNotFound
	}
	return r.TakeTurn(playerID)
}

// Disconnect marks a player's channel as gone. In a waiting room the player
// is additionally dropped after the reconnect grace if they never came back.
func (m *Manager) Disconnect(roomID, playerID string) ([]game.Event, error) {
	r, exists := m.Get(roomID)
	if !exists {
		return nil, ErrRoomNotFound
	}

	events, err := r.Disconnect(playerID)
	if err != nil {
		return nil, err
	}

	if info, ierr := r.Info(); ierr == nil && info.Status == game.StatusWaiting {
		m.timers.Schedule(m.cfg.ReconnectGrace, 0, func() {
			m.dropIfStillGone(roomID, playerID)
		})
	}
	return events, nil
}

// dropIfStillGone removes a player from a waiting room once the reconnect
// grace expired without them coming back.
func (m *Manager) dropIfStillGone(roomID, playerID string) {
	r, exists := m.Get(roomID)
	if !exists {
		return
	}

	_, err := r.Do(func(g *game.Game) ([]game.Event, error) {
		if g.Status() != game.StatusWaiting {
			return nil, nil
		}
		snap := g.Snapshot()
		for _, p := range snap.Players {
			if p.ID == playerID && !p.Connected {
				if err := g.RemovePlayer(playerID); err != nil {
					return nil, err
				}
				logger.Log.Infof("Room %s: dropped %s after reconnect grace", roomID, playerID)
				return []game.Event{{Type: game.EventRoomUpdated, Payload: g.Snapshot()}}, nil
			}
		}
		return nil, nil
	})
	if err != nil && err != ErrRoomClosed {
		logger.Log.Warnf("Room %s: grace expiry for %s failed: %v", roomID, playerID, err)
	}
}

// Get looks a room up.
func (m *Manager) Get(roomID string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	r, exists := m.rooms[roomID]
	return r, exists
}

func (m *Manager) getOrCreate(roomID string) *Room {
	m.mutex.RLock()
	r, exists := m.rooms[roomID]
	m.mutex.RUnlock()
	if exists {
		return r
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if r, exists = m.rooms[roomID]; exists {
		return r
	}
	r = NewRoom(roomID, m.board, m.roller, m.cfg.MaxPlayers, m.broadcaster)
	m.rooms[roomID] = r
	logger.Log.Infof("Room %s created", roomID)
	return r
}

// Count returns the number of active rooms.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// Infos summarises every active room, for the admin RPC.
func (m *Manager) Infos() []Info {
	m.mutex.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mutex.RUnlock()

	infos := make([]Info, 0, len(rooms))
	for _, r := range rooms {
		if info, err := r.Info(); err == nil {
			infos = append(infos, info)
		}
	}
	return infos
}

// Sweep reclaims dead rooms. It is the only place rooms are destroyed:
// finished rooms past the grace period, waiting rooms that emptied out or
// sat idle too long, and rooms whose worker shut down after a fault.
func (m *Manager) Sweep() {
	m.mutex.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mutex.RUnlock()

	now := time.Now()
	for _, r := range rooms {
		info, err := r.Info()
		if err != nil {
			m.evict(r, "faulted")
			continue
		}

		switch info.Status {
		case game.StatusFinished:
			if now.Sub(info.FinishedAt) >= m.cfg.FinishedGrace {
				m.evict(r, "finished")
			}
		case game.StatusWaiting:
			switch {
			case info.Players == 0:
				m.evict(r, "empty")
			case info.Connected == 0 && now.Sub(info.LastActive) >= m.cfg.ReconnectGrace:
				m.evict(r, "abandoned")
			case now.Sub(info.LastActive) >= m.cfg.WaitingIdle:
				m.evict(r, "idle")
			}
		}
	}
}

func (m *Manager) evict(r *Room, reason string) {
	r.Close()

	m.mutex.Lock()
	delete(m.rooms, r.ID)
	m.mutex.Unlock()

	logger.Log.Infof("Room %s evicted (%s)", r.ID, reason)
}

// Shutdown stops the sweep and closes every room.
func (m *Manager) Shutdown() {
	m.timers.Cancel(m.sweepTask)

	m.mutex.Lock()
	defer m.mutex.Unlock()
	for id, r := range m.rooms {
		r.Close()
		delete(m.rooms, id)
	}
}
