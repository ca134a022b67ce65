package models

import "time"

// Account is the verified identity the game core consumes. Credentials are
// checked by the account store; the core only ever sees this pair plus the
// running totals.
type Account struct {
	PlayerID    string    `json:"player_id"`
	DisplayName string    `json:"display_name"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PlayerStats is the aggregate view served over the admin RPC.
type PlayerStats struct {
	PlayerID   string `json:"player_id"`
	TotalGames int    `json:"total_games"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
}
