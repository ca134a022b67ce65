package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wfunc/laddergame/game"
	"github.com/wfunc/laddergame/logger"
	"github.com/wfunc/laddergame/network"
	"github.com/wfunc/laddergame/session"
)

var ErrUnknownEvent = errors.New("unknown event type")

// Broadcaster fans events out to room members.
type Broadcaster interface {
	BroadcastEvents(roomID string, events []game.Event) error
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
}

// MsgID maps an event type to its wire identifier.
func MsgID(t game.EventType) (uint16, error) {
	switch t {
	case game.EventRoomUpdated:
		return network.MsgTypeRoomUpdate, nil
	case game.EventGameStarted:
		return network.MsgTypeGameStart, nil
	case game.EventTurnResult:
		return network.MsgTypeDiceRoll, nil
	case game.EventGameState:
		return network.MsgTypeGameState, nil
	case game.EventGameWinner:
		return network.MsgTypeGameWinner, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownEvent, t)
	}
}

// RoomBroadcaster delivers frames to every session mapped to a room.
// Delivery is fire-and-forget per connection: a slow or broken connection
// drops its frame and never stalls the others.
type RoomBroadcaster struct {
	sessions *session.Manager
}

func NewRoomBroadcaster(sessions *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{sessions: sessions}
}

// BroadcastEvents encodes and sends events in generation order, so every
// client converges on identical state.
func (b *RoomBroadcaster) BroadcastEvents(roomID string, events []game.Event) error {
	members := b.sessions.GetByRoom(roomID)

	for _, e := range events {
		msgID, err := MsgID(e.Type)
		if err != nil {
			return err
		}
		data, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", e.Type, err)
		}
		for _, s := range members {
			if err := s.Send(msgID, data); err != nil {
				logger.Log.Warnf("Broadcast to session %s in room %s dropped: %v", s.ID, roomID, err)
			}
		}
	}
	return nil
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	for _, s := range b.sessions.GetByRoom(roomID) {
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Warnf("Broadcast to session %s in room %s dropped: %v", s.ID, roomID, err)
		}
	}
	return nil
}
