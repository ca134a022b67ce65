// persistence/interface.go
package persistence

import (
	"errors"

	"github.com/wfunc/laddergame/models"
)

var ErrAccountNotFound = errors.New("account not found")

// AccountStore is the persistent record store behind the account service.
type AccountStore interface {
	// FindByToken resolves a client credential to a verified account.
	FindByToken(token string) (*models.Account, error)
	// RecordResult bumps the win or loss counter for a player.
	RecordResult(playerID string, won bool) error
	// GetPlayerStats returns the aggregate totals for a player.
	GetPlayerStats(playerID string) (*models.PlayerStats, error)
	Close() error
}
