package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"score-sync-system/handlers"
	"score-sync-system/middleware"
	"score-sync-system/models"
	"score-sync-system/services"
	"score-sync-system/utils"
	"score-sync-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Environment{},
		&models.Player{},
		&models.GameTypeDefinition{},
		&models.GameTypeFavorite{},
		&models.Game{},
		&models.PlayerGameScore{},
		&models.Rivalry{},
		&models.RivalryPlayer{},
		&models.RivalryGameType{},
		&models.RivalryPlayerStats{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	hub := services.NewBroadcastHub()
	envService := services.NewEnvironmentService(db)
	gameTypeService := services.NewGameTypeService(db)
	rivalryService := services.NewRivalryService(db)
	statsService := services.NewRivalryStatsService(db)
	gameService := services.NewGameService(db, hub, rivalryService, statsService)
	scoreService := services.NewScoreService(db, hub)
	snapshotService := services.NewSnapshotService(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gameService.StartSweepScheduler()

	snapshotInterval := 0
	if raw := os.Getenv("SNAPSHOT_INTERVAL_MINUTES"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			snapshotInterval = v
		}
	}
	if snapshotInterval > 0 {
		snapshotWorker := workers.NewSnapshotWorker(db, snapshotService)
		go workers.PollSnapshots(ctx, snapshotWorker, time.Duration(snapshotInterval)*time.Minute)
	}

	handlers.SetupEnvironmentRoutes(app, db, envService, gameTypeService, snapshotService)
	handlers.SetupGameRoutes(app, db, gameService, scoreService)
	handlers.SetupRivalryRoutes(app, db, rivalryService)
	handlers.SetupWebSocketRoutes(app, db, hub)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Sweep scheduler running (stats nightly, stale games hourly)")
	if snapshotInterval > 0 {
		log.Printf("✅ Snapshot worker running (every %dm)", snapshotInterval)
	}

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = app.Shutdown()
}
