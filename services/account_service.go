package services

import (
	"github.com/wfunc/laddergame/logger"
	"github.com/wfunc/laddergame/models"
	"github.com/wfunc/laddergame/persistence"
)

// AccountService is the boundary to the account system. The game core only
// ever sees the verified (playerID, displayName) pair it returns; no room
// message is accepted before the token check passed.
type AccountService struct {
	store persistence.AccountStore
}

func NewAccountService(store persistence.AccountStore) *AccountService {
	return &AccountService{store: store}
}

// Authenticate resolves a client token to a verified identity.
func (s *AccountService) Authenticate(token string) (*models.Account, error) {
	return s.store.FindByToken(token)
}

// RecordGameResult bumps win/loss totals for everyone in a finished game.
// Best-effort: a store failure is logged, the game outcome already stands.
func (s *AccountService) RecordGameResult(winnerID string, playerIDs []string) {
	for _, id := range playerIDs {
		if err := s.store.RecordResult(id, id == winnerID); err != nil {
			logger.Log.Warnf("Failed to record result for %s: %v", id, err)
		}
	}
}

// GetPlayerStats returns the aggregate totals for a player.
func (s *AccountService) GetPlayerStats(playerID string) (*models.PlayerStats, error) {
	return s.store.GetPlayerStats(playerID)
}
