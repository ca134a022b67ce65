package session

import (
	"errors"
	"sync"
	"time"

	"github.com/wfunc/laddergame/logger"
	"github.com/wfunc/laddergame/network"
)

// ErrSendQueueFull is returned when a session's outbound queue overflows.
// The frame is dropped; the slow connection never stalls anyone else.
var ErrSendQueueFull = errors.New("session send queue full")

const sendQueueSize = 64

type outbound struct {
	msgID uint16
	data  []byte
}

// Session is one open client channel and the identity bound to it after
// authentication. Writes go through a buffered queue drained by a single
// writer goroutine, so broadcasts are fire-and-forget per connection and
// frames for one connection keep their order.
type Session struct {
	ID   string
	Conn network.Connection

	PlayerID    string
	DisplayName string
	RoomID      string

	CreatedAt  time.Time
	LastActive time.Time

	sendQ     chan outbound
	done      chan struct{}
	closeOnce sync.Once
	mutex     sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	s := &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
		sendQ:      make(chan outbound, sendQueueSize),
		done:       make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

func (s *Session) writeLoop() {
	for {
		select {
		case ob := <-s.sendQ:
			if err := s.Conn.Send(ob.msgID, ob.data); err != nil {
				logger.Log.Warnf("Session %s send failed: %v", s.ID, err)
			}
		case <-s.done:
			return
		}
	}
}

// Send enqueues a frame for the writer goroutine. It never blocks: when the
// queue is full the frame is dropped and ErrSendQueueFull returned.
func (s *Session) Send(msgID uint16, data []byte) error {
	select {
	case <-s.done:
		return errors.New("session closed")
	default:
	}

	select {
	case s.sendQ <- outbound{msgID: msgID, data: data}:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (s *Session) GetID() string {
	return s.ID
}

// Bind attaches the verified player identity to the session.
func (s *Session) Bind(playerID, displayName string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.PlayerID = playerID
	s.DisplayName = displayName
}

// Identity returns the bound player identity; empty until authenticated.
func (s *Session) Identity() (playerID, displayName string) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.PlayerID, s.DisplayName
}

func (s *Session) SetRoomID(roomID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.RoomID = roomID
}

func (s *Session) GetRoomID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.RoomID
}

func (s *Session) Touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.LastActive = time.Now()
}

// Close stops the writer goroutine and closes the underlying connection.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.Conn.Close()
	})
	return err
}

// Manager tracks all open sessions.
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(s *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[s.ID] = s
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	s, exists := m.sessions[sessionID]
	return s, exists
}

// GetByRoom returns every session currently mapped to a room.
func (m *Manager) GetByRoom(roomID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, s := range m.sessions {
		if s.GetRoomID() == roomID {
			result = append(result, s)
		}
	}
	return result
}

// GetByPlayer returns the sessions bound to a player id. More than one can
// exist briefly while a client reconnects.
func (m *Manager) GetByPlayer(playerID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, s := range m.sessions {
		if id, _ := s.Identity(); id == playerID {
			result = append(result, s)
		}
	}
	return result
}

// CloseAll closes every session, unblocking their readers. Used on server
// shutdown; hijacked websocket connections are not closed by the HTTP
// server.
func (m *Manager) CloseAll() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for id, s := range m.sessions {
		s.Close()
		delete(m.sessions, id)
	}
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
