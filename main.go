package main

import (
	"net/rpc"
	"time"

	"github.com/serpientes/gameserver/board"
	"github.com/serpientes/gameserver/broadcast"
	"github.com/serpientes/gameserver/config"
	"github.com/serpientes/gameserver/dice"
	"github.com/serpientes/gameserver/game"
	"github.com/serpientes/gameserver/logger"
	"github.com/serpientes/gameserver/monitor"
	"github.com/serpientes/gameserver/persistence"
	"github.com/serpientes/gameserver/room"
	gameserver_rpc "github.com/serpientes/gameserver/rpc"
	"github.com/serpientes/gameserver/server"
	"github.com/serpientes/gameserver/services"
	"github.com/serpientes/gameserver/session"
	"github.com/serpientes/gameserver/timer"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize storage
	var store persistence.Store
	var rewards game.Rewards
	var reporting *persistence.Reporting

	switch cfg.Database.Driver {
	case "memory":
		memStore := persistence.NewMemoryStore()
		store = memStore
		rewards = services.NewStoreRewards(memStore, cfg.Game.WinCoins)
		logger.Log.Info("Using in-memory store.")
	default:
		pg := cfg.Database.Postgres
		gormStore, err := persistence.NewGormStore(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		store = gormStore
		rewards = services.NewRewardService(gormStore, cfg.Game.WinCoins)

		reporting, err = persistence.NewReporting(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		if err != nil {
			logger.Log.Fatalf("Failed to open reporting connection: %v", err)
		}
		logger.Log.Info("Database connection successful.")
	}

	// Wire the managers
	sessions := session.NewManager()
	broadcaster := broadcast.NewHubBroadcaster(sessions)
	rooms := room.NewManager(store, broadcaster)
	engine := game.NewEngine(store, board.NewGenerator(cfg.Game.BoardSize), dice.NewSixSided(), broadcaster, rewards, rooms)

	// Monitoring endpoint
	mon := monitor.NewMonitor("serpientes")
	mon.StartServer(cfg.Server.MonitorAddress)

	// Admin RPC endpoint, postgres only
	if reporting != nil {
		rpcServer, err := gameserver_rpc.NewServer(cfg.Server.RPCAddress)
		if err != nil {
			logger.Log.Fatalf("Failed to create RPC server: %v", err)
		}
		rpc.Register(gameserver_rpc.NewAdminService(reporting))
		go rpcServer.Start()
	}

	// Periodic maintenance
	timers := timer.NewManager()
	sweep := time.Duration(cfg.Game.SweepMinutes) * time.Minute
	ttl := time.Duration(cfg.Game.RoomTTLHours) * time.Hour
	timers.Schedule(sweep, sweep, func() {
		rooms.SweepStale(ttl)
		if available, err := rooms.ListAvailableRooms(); err == nil {
			mon.SetActiveRooms(len(available))
		}
	})

	// Start the game server
	gameServer := server.NewGameServer(cfg.Server.HTTPAddress, store, rooms, engine, sessions, mon)
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
