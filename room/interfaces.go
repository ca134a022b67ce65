package room

import "github.com/wfunc/laddergame/game"

// Broadcaster delivers events to every connection subscribed to a room.
// Defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastEvents(roomID string, events []game.Event) error
}
