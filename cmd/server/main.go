package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"event-booking-api/config"
	"event-booking-api/internal/cache"
	"event-booking-api/internal/clock"
	"event-booking-api/internal/database"
	"event-booking-api/internal/handler"
	"event-booking-api/internal/middleware"
	"event-booking-api/internal/queue"
	"event-booking-api/internal/repository"
	"event-booking-api/internal/service"
	"event-booking-api/internal/worker"
	"event-booking-api/pkg/logger"
	"event-booking-api/pkg/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	migrateDown := flag.Bool("migrate-down", false, "roll back every migration and exit")
	flag.Parse()

	defer logger.Sync()
	log := logger.WithComponent("main")

	// .env 不存在時使用環境變數
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("failed to load .env", zap.Error(err))
	}

	cfg := config.LoadConfig()

	if *migrateDown {
		if err := database.MigrateDown(cfg.Database.MigrationURL()); err != nil {
			log.Fatal("failed to roll back migrations", zap.Error(err))
		}
		log.Info("migrations rolled back")
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	gin.SetMode(cfg.Server.GinMode)

	tel, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Telemetry.Environment,
		CollectorAddr:  cfg.Telemetry.CollectorAddr,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		// 送出尚未匯出的 span
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			log.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	if err := database.MigrateUp(cfg.Database.MigrationURL()); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	pool, err := database.InitDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatal("failed to initialize redis", zap.Error(err))
	}
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userRepo := repository.NewUserRepository(pool)
	eventRepo := repository.NewEventRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	txm := repository.NewTxManager(pool, cfg.Booking.LockTimeout)

	availability := cache.NewRedisAvailabilityCache(rdb, cfg.Booking.AvailabilityTTL)

	hostname, _ := os.Hostname()
	bookingQueue, err := queue.NewRedisStreamBookingQueue(ctx, rdb, hostname, &queue.RedisStreamConfig{
		ClaimMinIdleTime:   cfg.Stream.ClaimMinIdleTime,
		MaxRetryCount:      cfg.Stream.MaxRetryCount,
		ReadGroupBlockTime: cfg.Stream.ReadGroupBlockTime,
	})
	if err != nil {
		log.Fatal("failed to initialize booking stream", zap.Error(err))
	}

	clk := clock.NewSystem()
	bookingService := service.NewBookingService(txm, bookingRepo, eventRepo, availability, bookingQueue, clk, cfg.Booking.CancellationWindow)
	eventService := service.NewEventService(txm, eventRepo, bookingRepo, availability, bookingQueue, clk)

	notificationWorker := worker.NewNotificationWorker(bookingQueue, worker.NewLogNotifier())
	if err := notificationWorker.Start(ctx); err != nil {
		log.Fatal("failed to start notification worker", zap.Error(err))
	}

	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret, userRepo)
	idempotency := middleware.Idempotency(middleware.IdempotencyConfig{
		Store: rdb,
		TTL:   cfg.Booking.IdempotencyTTL,
	})

	router := handler.NewRouter(
		handler.NewHealthHandler(map[string]handler.HealthCheck{
			"database": pool.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
		handler.NewEventHandler(eventService, bookingService, auth.RequireAuth()),
		handler.NewBookingHandler(bookingService, auth.RequireAuth(), idempotency),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}

	// ctx 已取消，等待 worker 處理完手上的訊息
	notificationWorker.Wait()
	log.Info("server stopped")
}
