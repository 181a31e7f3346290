// services/reward_service.go
package services

import (
	"sync"

	"gorm.io/gorm"

	"github.com/serpientes/gameserver/gameerr"
	"github.com/serpientes/gameserver/models"
	"github.com/serpientes/gameserver/persistence"
)

// DefaultWinCoins is the coin grant for winning a game.
const DefaultWinCoins = 20

// RewardService applies end-of-game economy updates against PostgreSQL.
// Increments run as SQL expressions inside one transaction, so grants
// from concurrent games never lose updates.
type RewardService struct {
	store    *persistence.GormStore
	winCoins int64
}

func NewRewardService(store *persistence.GormStore, winCoins int64) *RewardService {
	if winCoins <= 0 {
		winCoins = DefaultWinCoins
	}
	return &RewardService{store: store, winCoins: winCoins}
}

func (s *RewardService) GrantWin(userID string) error {
	return s.store.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Updates(map[string]any{
				"coins":        gorm.Expr("coins + ?", s.winCoins),
				"games_won":    gorm.Expr("games_won + 1"),
				"games_played": gorm.Expr("games_played + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gameerr.NotFoundf("user %s not found", userID)
		}
		return nil
	})
}

func (s *RewardService) RecordPlayed(userID string) error {
	return s.store.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("games_played", gorm.Expr("games_played + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gameerr.NotFoundf("user %s not found", userID)
		}
		return nil
	})
}

// StoreRewards is the in-process counterpart used with the memory store.
// A single mutex serializes the read-modify-write cycle.
type StoreRewards struct {
	mu       sync.Mutex
	store    persistence.Store
	winCoins int64
}

func NewStoreRewards(store persistence.Store, winCoins int64) *StoreRewards {
	if winCoins <= 0 {
		winCoins = DefaultWinCoins
	}
	return &StoreRewards{store: store, winCoins: winCoins}
}

func (s *StoreRewards) GrantWin(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, err := s.store.GetUser(userID)
	if err != nil {
		return err
	}
	user.Coins += s.winCoins
	user.GamesWon++
	user.GamesPlayed++
	return s.store.UpdateUser(user)
}

func (s *StoreRewards) RecordPlayed(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, err := s.store.GetUser(userID)
	if err != nil {
		return err
	}
	user.GamesPlayed++
	return s.store.UpdateUser(user)
}
