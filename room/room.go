package room

import (
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/laddergame/board"
	"github.com/wfunc/laddergame/game"
	"github.com/wfunc/laddergame/logger"
)

// command is one queued state mutation. The reply channel is buffered so
// the worker never blocks on a caller that has gone away: a request whose
// connection died before its turn in the queue still completes, its result
// is simply undelivered.
type command struct {
	run   func(g *game.Game) ([]game.Event, error)
	reply chan result
	touch bool
}

type result struct {
	events []game.Event
	err    error
}

// Info is a point-in-time summary used by the sweeper and the admin RPC.
type Info struct {
	ID         string
	Status     game.Status
	Players    int
	Connected  int
	CreatedAt  time.Time
	LastActive time.Time
	FinishedAt time.Time
	Snapshot   game.Snapshot
}

// Room owns one game state machine. Every mutation goes through a command
// channel drained by a single worker goroutine, so transitions for one room
// apply strictly one at a time in arrival order while different rooms run
// in parallel. Events are broadcast from inside the worker, before the
// command is acknowledged, which keeps broadcast order identical to
// event-generation order.
type Room struct {
	ID         string
	maxPlayers int
	createdAt  time.Time

	game        *game.Game
	broadcaster Broadcaster

	// worker-only fields
	lastActive time.Time
	finishedAt time.Time
	corrupted  bool

	commands  chan command
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

const commandQueueSize = 32

// NewRoom creates a room in the Waiting state and starts its worker.
func NewRoom(id string, b *board.Board, roller game.Roller, maxPlayers int, broadcaster Broadcaster) *Room {
	now := time.Now()
	r := &Room{
		ID:          id,
		maxPlayers:  maxPlayers,
		createdAt:   now,
		lastActive:  now,
		game:        game.New(b, roller),
		broadcaster: broadcaster,
		commands:    make(chan command, commandQueueSize),
		closing:     make(chan struct{}),
		done:        make(chan struct{}),
	}
	go r.worker()
	return r
}

func (r *Room) worker() {
	defer close(r.done)
	for {
		select {
		case cmd := <-r.commands:
			r.apply(cmd)
		case <-r.closing:
			// Serve everything already accepted, then exit.
			for {
				select {
				case cmd := <-r.commands:
					r.apply(cmd)
				default:
					return
				}
			}
		}
	}
}

func (r *Room) apply(cmd command) {
	res := r.execute(cmd)

	if cmd.touch {
		r.lastActive = time.Now()
	}
	if r.game.Status() == game.StatusFinished && r.finishedAt.IsZero() {
		r.finishedAt = time.Now()
	}

	cmd.reply <- res

	if r.corrupted {
		// A panicked transition means the room state can no longer be
		// trusted. Stop accepting commands; the sweeper evicts us.
		r.Close()
	}
}

func (r *Room) execute(cmd command) (res result) {
	defer func() {
		if p := recover(); p != nil {
			logger.Log.Errorf("Room %s: panic during transition: %v", r.ID, p)
			r.corrupted = true
			res = result{err: fmt.Errorf("%w: %v", ErrInternal, p)}
		}
	}()

	events, err := cmd.run(r.game)
	if err == nil && len(events) > 0 {
		if berr := r.broadcaster.BroadcastEvents(r.ID, events); berr != nil {
			logger.Log.Warnf("Room %s: broadcast failed: %v", r.ID, berr)
		}
	}
	return result{events: events, err: err}
}

// Do submits a mutation to the room queue and waits for its result. The
// wait is bounded by the commands already queued for this room.
func (r *Room) Do(fn func(g *game.Game) ([]game.Event, error)) ([]game.Event, error) {
	return r.submit(fn, true)
}

func (r *Room) submit(fn func(g *game.Game) ([]game.Event, error), touch bool) ([]game.Event, error) {
	cmd := command{run: fn, reply: make(chan result, 1), touch: touch}

	select {
	case r.commands <- cmd:
	case <-r.closing:
		return nil, ErrRoomClosed
	}

	select {
	case res := <-cmd.reply:
		return res.events, res.err
	case <-r.done:
		// The worker exited between our enqueue and its drain.
		select {
		case res := <-cmd.reply:
			return res.events, res.err
		default:
			return nil, ErrRoomClosed
		}
	}
}

// Join adds a player to a waiting room, or reconnects a known player to a
// running one. The game auto-starts when the room reaches capacity.
func (r *Room) Join(playerID, displayName string) ([]game.Event, error) {
	return r.Do(func(g *game.Game) ([]game.Event, error) {
		if g.HasPlayer(playerID) {
			return g.MarkReconnected(playerID)
		}

		switch g.Status() {
		case game.StatusWaiting:
			if g.PlayerCount() >= r.maxPlayers {
				return nil, ErrRoomFull
			}
			if err := g.AddPlayer(playerID, displayName); err != nil {
				return nil, err
			}
			events := []game.Event{{Type: game.EventRoomUpdated, Payload: g.Snapshot()}}
			if g.PlayerCount() == r.maxPlayers {
				started, err := g.Start()
				if err != nil {
					return nil, err
				}
				events = append(events, started...)
			}
			return events, nil
		case game.StatusFinished:
			return nil, ErrRoomFinished
		default:
			// Late joins are rejected, not queued.
			return nil, ErrRoomAlreadyStarted
		}
	})
}

// Leave removes a player before start; after start it only marks them
// disconnected so they can rejoin.
func (r *Room) Leave(playerID string) ([]game.Event, error) {
	return r.Do(func(g *game.Game) ([]game.Event, error) {
		if g.Status() == game.StatusWaiting {
			if err := g.RemovePlayer(playerID); err != nil {
				return nil, err
			}
			return []game.Event{{Type: game.EventRoomUpdated, Payload: g.Snapshot()}}, nil
		}
		return g.MarkDisconnected(playerID)
	})
}

// Start begins the game. Only the room owner (first joined player) may
// start it explicitly.
func (r *Room) Start(requesterID string) ([]game.Event, error) {
	return r.Do(func(g *game.Game) ([]game.Event, error) {
		if g.OwnerID() != requesterID {
			return nil, ErrNotRoomOwner
		}
		return g.Start()
	})
}

// TakeTurn rolls the die for playerID if it is their turn.
func (r *Room) TakeTurn(playerID string) ([]game.Event, error) {
	return r.Do(func(g *game.Game) ([]game.Event, error) {
		return g.TakeTurn(playerID)
	})
}

// Disconnect flags a player's channel as gone without removing them.
func (r *Room) Disconnect(playerID string) ([]game.Event, error) {
	return r.Do(func(g *game.Game) ([]game.Event, error) {
		return g.MarkDisconnected(playerID)
	})
}

// Info returns a consistent summary, serialized like any other command.
// Reading does not refresh the room's idle clock.
func (r *Room) Info() (Info, error) {
	var info Info
	_, err := r.submit(func(g *game.Game) ([]game.Event, error) {
		info = Info{
			ID:         r.ID,
			Status:     g.Status(),
			Players:    g.PlayerCount(),
			Connected:  g.ConnectedCount(),
			CreatedAt:  r.createdAt,
			LastActive: r.lastActive,
			FinishedAt: r.finishedAt,
			Snapshot:   g.Snapshot(),
		}
		return nil, nil
	}, false)
	return info, err
}

// Close stops the worker after it drains the queue. Idempotent.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		close(r.closing)
	})
}
