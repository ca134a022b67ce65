package game

import (
	"fmt"
	"time"

	"github.com/wfunc/laddergame/board"
)

// Status is the lifecycle phase of a game. Transitions are strictly
// forward: Waiting -> InProgress -> Finished.
type Status int

const (
	StatusWaiting Status = iota
	StatusInProgress
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusInProgress:
		return "in_progress"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Player is one participant. Position 0 means not yet on the board. A
// player is owned exclusively by the game it belongs to.
type Player struct {
	ID          string
	DisplayName string
	Position    int
	Connected   bool
	JoinedAt    time.Time
}

// Game is the authoritative state machine for one room. It is not
// goroutine-safe: the owning room serializes every call, so the game never
// observes concurrent mutation. Every operation either fully commits or
// rejects before any mutation.
type Game struct {
	board     *board.Board
	roller    Roller
	players   []*Player
	status    Status
	turnIndex int
	lastRoll  int
	winnerID  string
}

// New creates an empty game in the Waiting state.
func New(b *board.Board, roller Roller) *Game {
	return &Game{
		board:  b,
		roller: roller,
	}
}

// AddPlayer registers a player while the game is still waiting. Turn order
// is join order.
func (g *Game) AddPlayer(id, displayName string) error {
	if g.status != StatusWaiting {
		return fmt.Errorf("%w: cannot join after start", ErrInvalidTransition)
	}
	if g.findPlayer(id) != nil {
		return ErrAlreadyJoined
	}

	g.players = append(g.players, &Player{
		ID:          id,
		DisplayName: displayName,
		Connected:   true,
		JoinedAt:    time.Now(),
	})
	return nil
}

// RemovePlayer drops a player before the game starts. After start, players
// are never removed; use MarkDisconnected instead.
func (g *Game) RemovePlayer(id string) error {
	if g.status != StatusWaiting {
		return fmt.Errorf("%w: cannot remove a player after start", ErrInvalidTransition)
	}

	for i, p := range g.players {
		if p.ID == id {
			g.players = append(g.players[:i], g.players[i+1:]...)
			return nil
		}
	}
	return ErrPlayerNotFound
}

// Start fixes the turn order and moves the game to InProgress. It fails if
// the game has already started or fewer than two players joined.
func (g *Game) Start() ([]Event, error) {
	if g.status != StatusWaiting {
		return nil, fmt.Errorf("%w: game already started", ErrInvalidTransition)
	}
	if len(g.players) < 2 {
		return nil, fmt.Errorf("%w: at least two players required", ErrInvalidTransition)
	}

	g.status = StatusInProgress
	g.turnIndex = 0

	order := make([]string, len(g.players))
	for i, p := range g.players {
		order[i] = p.ID
	}

	return []Event{
		{Type: EventGameStarted, Payload: StartedPayload{BoardSize: g.board.Size(), TurnOrder: order}},
		{Type: EventGameState, Payload: g.Snapshot()},
	}, nil
}

// TakeTurn rolls the die for the active player and applies the move.
//
// An overshoot (tentative position past the goal) leaves the position
// unchanged but still consumes the turn. Otherwise the move lands on the
// rolled cell and then follows at most one board link. Reaching the goal
// finishes the game; any later TakeTurn fails with ErrGameNotInProgress.
func (g *Game) TakeTurn(playerID string) ([]Event, error) {
	if g.status != StatusInProgress {
		return nil, ErrGameNotInProgress
	}

	active := g.players[g.turnIndex]
	if active.ID != playerID {
		return nil, ErrNotYourTurn
	}

	roll := g.roller.Roll()
	g.lastRoll = roll

	from := active.Position
	to := from
	afterLink := from
	if tentative := from + roll; tentative <= g.board.Size() {
		to = tentative
		afterLink = g.board.Resolve(tentative)
		active.Position = afterLink
	}

	events := []Event{{
		Type: EventTurnResult,
		Payload: TurnResultPayload{
			PlayerID:      active.ID,
			Roll:          roll,
			FromCell:      from,
			ToCell:        to,
			AfterLinkCell: afterLink,
		},
	}}

	if g.board.IsGoal(active.Position) {
		g.status = StatusFinished
		g.winnerID = active.ID
		events = append(events,
			Event{Type: EventGameState, Payload: g.Snapshot()},
			Event{Type: EventGameWinner, Payload: WinnerPayload{PlayerID: active.ID}},
		)
		return events, nil
	}

	g.advanceTurn()
	events = append(events, Event{Type: EventGameState, Payload: g.Snapshot()})
	return events, nil
}

// MarkDisconnected flags a player as gone without removing them, so they
// can rejoin with the same identity. If the active player disconnects
// mid-game the turn immediately passes to the next connected player.
func (g *Game) MarkDisconnected(playerID string) ([]Event, error) {
	p := g.findPlayer(playerID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	p.Connected = false

	if g.status == StatusInProgress && g.players[g.turnIndex].ID == playerID {
		g.advanceTurn()
	}
	return []Event{{Type: EventRoomUpdated, Payload: g.Snapshot()}}, nil
}

// MarkReconnected flags a player as back. If the room was frozen on a
// disconnected active player, the turn moves to a connected one.
func (g *Game) MarkReconnected(playerID string) ([]Event, error) {
	p := g.findPlayer(playerID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	p.Connected = true

	if g.status == StatusInProgress && !g.players[g.turnIndex].Connected {
		g.advanceTurn()
	}
	return []Event{{Type: EventRoomUpdated, Payload: g.Snapshot()}}, nil
}

// advanceTurn moves to the next connected player in fixed order, wrapping.
// Disconnected players are skipped, never removed. With no connected player
// left the index stays put and the game is frozen until a reconnect.
func (g *Game) advanceTurn() {
	n := len(g.players)
	for step := 1; step <= n; step++ {
		next := (g.turnIndex + step) % n
		if g.players[next].Connected {
			g.turnIndex = next
			return
		}
	}
}

func (g *Game) findPlayer(id string) *Player {
	for _, p := range g.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Status returns the lifecycle phase.
func (g *Game) Status() Status {
	return g.status
}

// WinnerID returns the winner, or "" while the game is unfinished.
func (g *Game) WinnerID() string {
	return g.winnerID
}

// PlayerCount returns the number of joined players.
func (g *Game) PlayerCount() int {
	return len(g.players)
}

// ConnectedCount returns the number of players currently connected.
func (g *Game) ConnectedCount() int {
	count := 0
	for _, p := range g.players {
		if p.Connected {
			count++
		}
	}
	return count
}

// HasPlayer reports whether a player id belongs to this game.
func (g *Game) HasPlayer(id string) bool {
	return g.findPlayer(id) != nil
}

// ActivePlayerID returns the player whose turn it is, or "" outside of
// InProgress.
func (g *Game) ActivePlayerID() string {
	if g.status != StatusInProgress {
		return ""
	}
	return g.players[g.turnIndex].ID
}

// OwnerID returns the first joined player, who may start the game.
func (g *Game) OwnerID() string {
	if len(g.players) == 0 {
		return ""
	}
	return g.players[0].ID
}

// Snapshot returns the full public state.
func (g *Game) Snapshot() Snapshot {
	players := make([]PlayerSnapshot, len(g.players))
	for i, p := range g.players {
		players[i] = PlayerSnapshot{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Position:    p.Position,
			Connected:   p.Connected,
		}
	}

	return Snapshot{
		Status:         g.status.String(),
		Players:        players,
		TurnIndex:      g.turnIndex,
		ActivePlayerID: g.ActivePlayerID(),
		LastRoll:       g.lastRoll,
		WinnerID:       g.winnerID,
	}
}
