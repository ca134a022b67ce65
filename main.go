package main

import (
	"github.com/wfunc/laddergame/board"
	"github.com/wfunc/laddergame/broadcast"
	"github.com/wfunc/laddergame/config"
	"github.com/wfunc/laddergame/game"
	"github.com/wfunc/laddergame/logger"
	"github.com/wfunc/laddergame/monitor"
	"github.com/wfunc/laddergame/persistence"
	"github.com/wfunc/laddergame/room"
	"github.com/wfunc/laddergame/server"
	"github.com/wfunc/laddergame/services"
	"github.com/wfunc/laddergame/session"
	"github.com/wfunc/laddergame/timer"
)

func main() {
	// Initialize logger
	logger.Init(false)
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Server.Development {
		logger.Init(true)
	}

	// Build the board; a bad link table is fatal at startup.
	links := cfg.Game.LinkTable()
	if links == nil {
		links = board.ClassicLinks()
	}
	gameBoard, err := board.New(cfg.Game.BoardSize, links)
	if err != nil {
		logger.Log.Fatalf("Failed to build board: %v", err)
	}

	// Initialize the account store
	store, err := newAccountStore(cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()
	logger.Log.Info("Database connection successful.")

	accounts := services.NewAccountService(store)

	// Core wiring: sessions, broadcaster, rooms.
	sessions := session.NewManager()
	broadcaster := broadcast.NewRoomBroadcaster(sessions)
	timers := timer.NewManager()
	defer timers.Stop()

	rooms := room.NewManager(gameBoard, game.NewRoller(), room.Config{
		MaxPlayers:     cfg.Room.MaxPlayers,
		FinishedGrace:  cfg.Room.FinishedGrace,
		WaitingIdle:    cfg.Room.WaitingIdle,
		ReconnectGrace: cfg.Room.ReconnectGrace,
		SweepInterval:  cfg.Room.SweepInterval,
	}, broadcaster, timers)
	defer rooms.Shutdown()

	// Monitoring
	mon := monitor.NewMonitor("laddergame")
	mon.StartServer(cfg.Server.MonitorAddress)
	timers.Schedule(cfg.Room.SweepInterval, cfg.Room.SweepInterval, func() {
		mon.SetActiveRooms(rooms.Count())
	})

	// Initialize Game Server
	gameServer := server.NewGameServer(
		cfg.Server.HTTPAddress,
		cfg.Server.RPCAddress,
		rooms, sessions, accounts, broadcaster, mon,
	)

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}

func newAccountStore(cfg config.DatabaseConfig) (persistence.AccountStore, error) {
	pg := cfg.Postgres
	if cfg.Driver == "sql" {
		return persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	}
	return persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
}
