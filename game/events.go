package game

// EventType identifies the type of event
type EventType string

const (
	EventRoomUpdated EventType = "room:update"
	EventGameStarted EventType = "game:start"
	EventTurnResult  EventType = "game:diceRoll"
	EventGameState   EventType = "game:state"
	EventGameWinner  EventType = "game:winner"
)

// Event is an emitted fact. Events carry enough data for every client to
// reconstruct state without recomputation, and are broadcast in the order
// they were generated.
type Event struct {
	Type    EventType
	Payload any
}

// TurnResultPayload describes one resolved move.
type TurnResultPayload struct {
	PlayerID      string `json:"player_id"`
	Roll          int    `json:"roll"`
	FromCell      int    `json:"from_cell"`
	ToCell        int    `json:"to_cell"`
	AfterLinkCell int    `json:"after_link_cell"`
}

// WinnerPayload announces the winning player.
type WinnerPayload struct {
	PlayerID string `json:"player_id"`
}

// StartedPayload announces the start of a game with its fixed turn order.
type StartedPayload struct {
	BoardSize int      `json:"board_size"`
	TurnOrder []string `json:"turn_order"`
}

// PlayerSnapshot is one player's public state.
type PlayerSnapshot struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Position    int    `json:"position"`
	Connected   bool   `json:"connected"`
}

// Snapshot is the full public game state, sent as the game:state payload
// and as the room:update payload.
type Snapshot struct {
	Status         string           `json:"status"`
	Players        []PlayerSnapshot `json:"players"`
	TurnIndex      int              `json:"turn_index"`
	ActivePlayerID string           `json:"active_player_id,omitempty"`
	LastRoll       int              `json:"last_roll,omitempty"`
	WinnerID       string           `json:"winner_id,omitempty"`
}
