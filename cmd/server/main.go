package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-computer-booking/internal/config"
	"github.com/iliyamo/lab-computer-booking/internal/database"
	"github.com/iliyamo/lab-computer-booking/internal/handler"
	"github.com/iliyamo/lab-computer-booking/internal/middleware"
	"github.com/iliyamo/lab-computer-booking/internal/queue"
	"github.com/iliyamo/lab-computer-booking/internal/release"
	"github.com/iliyamo/lab-computer-booking/internal/repository"
	"github.com/iliyamo/lab-computer-booking/internal/router"
	queue_publisher "github.com/iliyamo/lab-computer-booking/internal/service"
)

func main() {
	// .env is optional; in containers the variables come from the
	// environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis powers rate limiting and the public catalog cache.  A nil
	// client disables both; the API stays functional without Redis.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and response cache disabled")
	}

	// Repositories
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	labs := repository.NewLabRepo(db)
	computers := repository.NewComputerRepo(db)
	bookings := repository.NewBookingRepo(db)
	releaseStore := repository.NewReleaseStore(db)

	// Release core + notifications
	publisher := queue_publisher.New()
	releaseSvc := release.NewService(releaseStore, publisher)

	// Handlers
	authH := handler.NewAuthHandler(cfg, users, tokens)
	catalogH := handler.NewCatalogHandler(labs, computers)
	bookingH := handler.NewBookingHandler(bookings, computers)
	releaseH := handler.NewReleaseHandler(releaseSvc)
	adminH := handler.NewAdminHandler(bookings, labs, computers, publisher)

	e := echo.New()

	// Distributed token-bucket rate limit on every route.
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	// Response cache is applied selectively inside RegisterPublic.
	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterPublic(e, catalogH, releaseH, cacheMW)
	router.RegisterStudent(e, bookingH, releaseH, cfg.JWTSecret)
	router.RegisterAdmin(e, adminH, releaseH, cfg.JWTSecret)

	// Background consumer turning queued events into notification log
	// lines.  It reconnects on its own; a broker outage never stops
	// the API.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
