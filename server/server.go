package server

import (
	"encoding/json"
	"errors"
	"net/http"
	netrpc "net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/laddergame/broadcast"
	"github.com/wfunc/laddergame/game"
	"github.com/wfunc/laddergame/logger"
	"github.com/wfunc/laddergame/monitor"
	"github.com/wfunc/laddergame/network"
	"github.com/wfunc/laddergame/persistence"
	"github.com/wfunc/laddergame/room"
	laddergamerpc "github.com/wfunc/laddergame/rpc"
	"github.com/wfunc/laddergame/services"
	"github.com/wfunc/laddergame/session"
)

const heartbeatInterval = 60 * time.Second

// GameServer is the synchronization gateway: the only component that
// crosses the network boundary. It maps connections to (room, player),
// feeds inbound messages to the room coordinator and answers validation
// errors to the offending connection only. It never mutates game state
// directly.
type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	accounts       *services.AccountService
	broadcaster    broadcast.Broadcaster
	rpcServer      *laddergamerpc.Server
	monitor        *monitor.Monitor
	httpServer     *http.Server
	shutdownChan   chan struct{}
}

func NewGameServer(
	addr, rpcAddr string,
	rooms *room.Manager,
	sessions *session.Manager,
	accounts *services.AccountService,
	broadcaster broadcast.Broadcaster,
	mon *monitor.Monitor,
) *GameServer {
	s := &GameServer{
		addr:           addr,
		roomManager:    rooms,
		sessionManager: sessions,
		accounts:       accounts,
		broadcaster:    broadcaster,
		monitor:        mon,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	rpcServer, err := laddergamerpc.NewServer(rpcAddr)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	adminService := laddergamerpc.NewAdminService(rooms, accounts)
	netrpc.Register(adminService)

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	http.HandleFunc("/ws", s.handleWebSocket)
	s.httpServer = &http.Server{Addr: s.addr}
	logger.Log.Infof("Game server listening on %s", s.addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the listeners and closes every session, which unblocks
// connection readers stuck in ReadPacket.
func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	if s.rpcServer != nil {
		s.rpcServer.Stop()
	}
	if s.httpServer != nil {
		s.httpServer.Close()
	}
	s.sessionManager.CloseAll()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(heartbeatInterval)

	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.handleDisconnect(sess)
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlinePlayers()
		sess.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.monitor.IncMessagesReceived()
			s.handlePacket(sess, packet)
		}
	}
}

// handleDisconnect marks the player as gone without removing them from the
// room, so rejoining with the same identity reconnects them.
func (s *GameServer) handleDisconnect(sess *session.Session) {
	roomID := sess.GetRoomID()
	if roomID == "" {
		return
	}
	playerID, _ := sess.Identity()
	if playerID == "" {
		return
	}

	if _, err := s.roomManager.Disconnect(roomID, playerID); err != nil &&
		!errors.Is(err, room.ErrRoomNotFound) && !errors.Is(err, room.ErrRoomClosed) {
		logger.Log.Warnf("Disconnect of %s from room %s failed: %v", playerID, roomID, err)
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	if packet.MsgID == network.MsgTypeHeartbeat {
		sess.Touch()
		return
	}
	if packet.MsgID == network.MsgTypeAuth {
		s.handleAuth(sess, packet)
		return
	}

	// Every room message requires a verified identity first.
	if playerID, _ := sess.Identity(); playerID == "" {
		s.sendError(sess, "auth_required", errors.New("authenticate before sending room messages"))
		return
	}

	switch packet.MsgID {
	case network.MsgTypeRoomJoin:
		s.handleJoinRoom(sess, packet)
	case network.MsgTypeRoomLeave:
		s.handleLeaveRoom(sess)
	case network.MsgTypeGameStart:
		s.handleStartGame(sess)
	case network.MsgTypeGameAction:
		s.handleGameAction(sess)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

type authRequest struct {
	Token string `json:"token"`
}

type authOK struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
}

func (s *GameServer) handleAuth(sess *session.Session, packet *network.Packet) {
	var req authRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "bad_request", err)
		return
	}

	account, err := s.accounts.Authenticate(req.Token)
	if err != nil {
		s.sendError(sess, errorCode(err), errors.New("authentication failed"))
		return
	}

	sess.Bind(account.PlayerID, account.DisplayName)
	logger.Log.Infof("Session %s authenticated as %s (%s)", sess.GetID(), account.PlayerID, account.DisplayName)

	data, _ := json.Marshal(authOK{PlayerID: account.PlayerID, DisplayName: account.DisplayName})
	if err := sess.Send(network.MsgTypeAuthOK, data); err != nil {
		logger.Log.Warnf("Failed to send auth reply to %s: %v", sess.GetID(), err)
	}
}

type joinRequest struct {
	RoomID string `json:"room_id"`
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) {
	var req joinRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil || req.RoomID == "" {
		s.sendError(sess, "bad_request", errors.New("join requires a room_id"))
		return
	}

	playerID, displayName := sess.Identity()

	// A session mapped to another live room must leave it first. Silently
	// remapping would leave the old game holding a connected player who can
	// never act or hear a broadcast, wedging its turn rotation.
	if current := sess.GetRoomID(); current != "" && current != req.RoomID {
		if _, exists := s.roomManager.Get(current); exists {
			s.sendError(sess, "already_in_room", errors.New("leave the current room before joining another"))
			return
		}
		sess.SetRoomID("")
	}

	// Map the session before joining so the room's broadcast of the join
	// reaches the joiner too.
	sess.SetRoomID(req.RoomID)
	if _, err := s.roomManager.Join(req.RoomID, playerID, displayName); err != nil {
		sess.SetRoomID("")
		s.sendError(sess, errorCode(err), err)
		return
	}

	logger.Log.Infof("Player %s joined room %s", playerID, req.RoomID)
}

func (s *GameServer) handleLeaveRoom(sess *session.Session) {
	roomID := sess.GetRoomID()
	if roomID == "" {
		s.sendError(sess, "not_in_room", errors.New("not in a room"))
		return
	}
	playerID, _ := sess.Identity()

	if _, err := s.roomManager.Leave(roomID, playerID); err != nil {
		s.sendError(sess, errorCode(err), err)
		return
	}
	sess.SetRoomID("")
}

func (s *GameServer) handleStartGame(sess *session.Session) {
	roomID := sess.GetRoomID()
	if roomID == "" {
		s.sendError(sess, "not_in_room", errors.New("not in a room"))
		return
	}
	playerID, _ := sess.Identity()

	if _, err := s.roomManager.StartGame(roomID, playerID); err != nil {
		s.sendError(sess, errorCode(err), err)
	}
}

func (s *GameServer) handleGameAction(sess *session.Session) {
	roomID := sess.GetRoomID()
	if roomID == "" {
		s.sendError(sess, "not_in_room", errors.New("not in a room"))
		return
	}
	playerID, _ := sess.Identity()

	started := time.Now()
	events, err := s.roomManager.RequestTurn(roomID, playerID)
	if err != nil {
		if errors.Is(err, room.ErrInternal) {
			s.notifyRoomFault(roomID, err)
		}
		s.sendError(sess, errorCode(err), err)
		return
	}

	s.monitor.IncTurnsPlayed()
	s.monitor.ObserveTurnLatency(time.Since(started))
	s.recordOutcome(events)
}

// recordOutcome feeds a finished game's result to the account service.
func (s *GameServer) recordOutcome(events []game.Event) {
	var winnerID string
	var playerIDs []string

	for _, e := range events {
		switch payload := e.Payload.(type) {
		case game.WinnerPayload:
			winnerID = payload.PlayerID
		case game.Snapshot:
			playerIDs = playerIDs[:0]
			for _, p := range payload.Players {
				playerIDs = append(playerIDs, p.ID)
			}
		}
	}

	if winnerID != "" {
		go s.accounts.RecordGameResult(winnerID, playerIDs)
	}
}

// notifyRoomFault tells every member their room is gone and has the
// faulted room reclaimed, rather than letting it run on in an inconsistent
// state.
func (s *GameServer) notifyRoomFault(roomID string, err error) {
	logger.Log.Errorf("Room %s faulted: %v", roomID, err)
	data, _ := json.Marshal(errorPayload{Code: "room_fault", Message: "room closed due to an internal error"})
	s.broadcaster.BroadcastToRoom(roomID, network.MsgTypeError, data)
	go s.roomManager.Sweep()
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sendError answers the offending connection only; room state is untouched.
func (s *GameServer) sendError(sess *session.Session, code string, err error) {
	data, _ := json.Marshal(errorPayload{Code: code, Message: err.Error()})
	if serr := sess.Send(network.MsgTypeError, data); serr != nil {
		logger.Log.Warnf("Failed to send error to session %s: %v", sess.GetID(), serr)
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, game.ErrGameNotInProgress):
		return "game_not_in_progress"
	case errors.Is(err, game.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, game.ErrAlreadyJoined):
		return "already_joined"
	case errors.Is(err, game.ErrPlayerNotFound):
		return "player_not_found"
	case errors.Is(err, room.ErrRoomFull):
		return "room_full"
	case errors.Is(err, room.ErrRoomAlreadyStarted):
		return "room_already_started"
	case errors.Is(err, room.ErrRoomFinished):
		return "room_finished"
	case errors.Is(err, room.ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, room.ErrNotRoomOwner):
		return "not_room_owner"
	case errors.Is(err, room.ErrRoomClosed):
		return "room_closed"
	case errors.Is(err, persistence.ErrAccountNotFound):
		return "auth_failed"
	default:
		return "internal_error"
	}
}
