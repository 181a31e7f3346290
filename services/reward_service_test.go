package services

import (
	"sync"
	"testing"

	"github.com/serpientes/gameserver/gameerr"
	"github.com/serpientes/gameserver/models"
	"github.com/serpientes/gameserver/persistence"
)

func TestStoreRewards_GrantWin(t *testing.T) {
	store := persistence.NewMemoryStore()
	store.CreateUser(&models.User{ID: "u1", Username: "ana"})
	rewards := NewStoreRewards(store, 0)

	if err := rewards.GrantWin("u1"); err != nil {
		t.Fatalf("GrantWin failed: %v", err)
	}

	user, _ := store.GetUser("u1")
	if user.Coins != DefaultWinCoins {
		t.Errorf("Expected %d coins, got %d", DefaultWinCoins, user.Coins)
	}
	if user.GamesWon != 1 || user.GamesPlayed != 1 {
		t.Errorf("Win should count as played, got won=%d played=%d", user.GamesWon, user.GamesPlayed)
	}
}

func TestStoreRewards_RecordPlayed(t *testing.T) {
	store := persistence.NewMemoryStore()
	store.CreateUser(&models.User{ID: "u1", Username: "ana"})
	rewards := NewStoreRewards(store, 0)

	if err := rewards.RecordPlayed("u1"); err != nil {
		t.Fatalf("RecordPlayed failed: %v", err)
	}

	user, _ := store.GetUser("u1")
	if user.GamesPlayed != 1 || user.GamesWon != 0 || user.Coins != 0 {
		t.Errorf("Only games_played should move: %+v", user)
	}
}

func TestStoreRewards_UnknownUser(t *testing.T) {
	rewards := NewStoreRewards(persistence.NewMemoryStore(), 0)

	if err := rewards.GrantWin("missing"); gameerr.KindOf(err) != gameerr.KindNotFound {
		t.Errorf("Expected NotFound, got %v", err)
	}
}

func TestStoreRewards_ConcurrentGrants(t *testing.T) {
	store := persistence.NewMemoryStore()
	store.CreateUser(&models.User{ID: "u1", Username: "ana"})
	rewards := NewStoreRewards(store, 5)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rewards.GrantWin("u1")
		}()
	}
	wg.Wait()

	user, _ := store.GetUser("u1")
	if user.Coins != 50 {
		t.Errorf("Expected 50 coins after 10 grants, got %d", user.Coins)
	}
	if user.GamesWon != 10 {
		t.Errorf("Expected 10 wins, got %d", user.GamesWon)
	}
}
