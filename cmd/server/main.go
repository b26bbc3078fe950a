package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/timeslot-reservation/internal/config"
	"github.com/iliyamo/timeslot-reservation/internal/database"
	"github.com/iliyamo/timeslot-reservation/internal/handler"
	"github.com/iliyamo/timeslot-reservation/internal/middleware"
	"github.com/iliyamo/timeslot-reservation/internal/queue"
	"github.com/iliyamo/timeslot-reservation/internal/repository"
	"github.com/iliyamo/timeslot-reservation/internal/router"
	"github.com/iliyamo/timeslot-reservation/internal/service"
	"github.com/iliyamo/timeslot-reservation/internal/utils"
)

func main() {
	cfg := config.Load()
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(startCtx, db); err != nil {
		log.Fatalf("database: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	store := middleware.NewResponseStore(cacheCfg, rdb)
	var purger handler.Purger
	if store != nil {
		purger = store
	}

	var pub service.Publisher = service.NopPublisher{}
	if cfg.EventsEnabled {
		amqpPub := service.NewAMQPPublisher(cfg.AMQPURL)
		defer amqpPub.Close()
		pub = amqpPub
	}

	hash, err := utils.HashPassword(cfg.AdminPassword, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("admin password: %v", err)
	}

	reservations := repository.NewReservationRepo(db)
	settings := repository.NewSettingRepo(db)
	bookingSvc := service.NewBookingService(reservations, settings, pub, cfg.Location)
	adminSvc := &service.AdminService{
		Booking:      bookingSvc,
		PasswordHash: hash,
		JWTSecret:    cfg.JWTSecret,
		AccessTTLMin: cfg.AccessTTLMin,
	}
	if err := adminSvc.LoadSettings(startCtx); err != nil {
		log.Fatalf("%v", err)
	}
	cancelStart()

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(log.INFO)
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	limit := middleware.NewTokenBucket(rlCfg, rdb)
	router.RegisterRoutes(e)
	router.RegisterPublic(e,
		handler.NewBookingHandler(bookingSvc, purger, cacheCfg.Prefix),
		middleware.NewResponseCache(cacheCfg, store),
		limit,
	)
	router.RegisterAdmin(e, handler.NewAdminHandler(adminSvc, purger, cacheCfg.Prefix), cfg.JWTSecret, limit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.EventsEnabled {
		consumer := queue.NewConsumer(cfg.AMQPURL, cfg.BookingLogDir)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("reservation-consumer: %v", err)
			}
		}()
	}

	addr := ":" + cfg.Port
	go func() {
		log.Infof("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Infof("shutdown signal received, draining requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("graceful shutdown failed: %v", err)
	}
	log.Infof("server stopped")
}
