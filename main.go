package main

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/wfunc/chaseserver/config"
	"github.com/wfunc/chaseserver/logger"
	"github.com/wfunc/chaseserver/monitor"
	"github.com/wfunc/chaseserver/persistence"
	"github.com/wfunc/chaseserver/room"
	"github.com/wfunc/chaseserver/server"
)

func main() {
	// .env 仅本地开发用，缺失不是错误
	godotenv.Load()

	// Initialize logger
	logger.Init()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	var db persistence.Database
	switch cfg.Database.Driver {
	case "postgres":
		db, err = persistence.NewPostgreSQL(
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.DBName,
		)
	default:
		db, err = persistence.NewGormPostgreSQL(
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.DBName,
		)
	}
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Log.Info("Database connection successful.")

	// Optional Redis fanout for multi-instance deployments
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	// Metrics endpoint
	mon := monitor.NewMonitor("chaseserver")
	mon.StartServer(cfg.Server.MetricsAddress)

	// Initialize Game Server
	gameServer := server.NewGameServer(server.Options{
		Addr:        cfg.Server.HTTPAddress,
		RPCAddr:     cfg.Server.RPCAddress,
		JWTSecret:   cfg.Server.JWTSecret,
		RedisClient: redisClient,
		Monitor:     mon,
		Rooms: room.ManagerConfig{
			ResetDelay:          time.Duration(cfg.Game.ResetDelaySeconds) * time.Second,
			RoomTTL:             time.Duration(cfg.Game.RoomTTLMinutes) * time.Minute,
			TrustClientPosition: cfg.Game.TrustClientPosition,
		},
	}, db)

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
