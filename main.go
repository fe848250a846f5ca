package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"clinic-app-server/internal/actor"
	"clinic-app-server/internal/clock"
	"clinic-app-server/internal/config"
	"clinic-app-server/internal/jobs"
	"clinic-app-server/internal/notify"
	"clinic-app-server/internal/realtime"
	"clinic-app-server/internal/records"
	"clinic-app-server/internal/routes"
	"clinic-app-server/internal/scheduling"
	"clinic-app-server/internal/store"
)

func main() {
	// Load environment variables; a missing .env is fine outside development.
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("APP_ENV") == "development" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error loading config")
	}

	// Initialize database connection and run migrations
	st, err := store.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("error connecting to database")
	}

	// Realtime hub, optionally bridged across instances via Redis
	hub := realtime.NewHub(log)
	var broadcast realtime.Broadcaster = hub
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		bridge := realtime.NewRedisBridge(hub, client, uuid.New().String(), log)
		defer bridge.Close()
		broadcast = bridge
		log.Info().Str("addr", cfg.Redis.Addr).Msg("realtime redis bridge enabled")
	}

	// Core services
	clk := clock.System{}
	notifier := &notify.LogNotifier{Log: log}
	resolver := actor.NewResolver(st.Users())
	engine := scheduling.NewEngine(resolver, st, clk, notifier, broadcast, log)
	calendar := scheduling.NewCalendar(resolver, st, clk)
	recordSvc := records.NewService(resolver, st, clk, notifier, broadcast, log)

	// Daily reminder job
	reminders := jobs.NewReminders(st, clk, notifier, log)
	cronRunner := reminders.Start()
	defer cronRunner.Stop()

	// Initialize Gin router
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Set up routes
	routes.SetupRoutes(router, routes.Deps{
		DB:       st.DB(),
		Cfg:      cfg,
		Store:    st,
		Engine:   engine,
		Calendar: calendar,
		Records:  recordSvc,
		Hub:      hub,
	})

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	log.Info().Str("port", cfg.Port).Msg("server running")
	if err := router.Run(serverAddr); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}
