package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cart-service/config"
	"cart-service/internal/auth"
	"cart-service/internal/cache"
	"cart-service/internal/events"
	"cart-service/internal/repository"
	"cart-service/internal/service"
	"cart-service/internal/sweeper"
	grpctransport "cart-service/internal/transport/grpc"
	"cart-service/internal/transport/httpapi"
	"cart-service/pkg/database"
	"cart-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}

	defer logger.Sync()

	log := logger.L()

	cfg := config.Load(log)
	log.Info("config loaded",
		zap.String("storage", cfg.Storage),
		zap.String("events", cfg.Events.Driver),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Duration("cart_ttl", cfg.Cart.TTL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Хранилище
	var repo *repository.Repository
	switch cfg.Storage {
	case config.StorageMemory:
		log.Warn("Используется in-memory хранилище, данные не переживут рестарт")
		repo = repository.NewMemory().Repository
	default:
		db := database.ConnectDB(&cfg.DB.Config, log)
		defer database.CloseDB(db, log)
		repo = repository.New(db)
	}

	// Кэш карточек
	var productCache service.ProductCache = service.NopCache{}
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Warn("Redis недоступен, кэш отключён", zap.Error(err))
		} else {
			defer rdb.Close()
			productCache = cache.NewProductCache(rdb, time.Duration(cfg.Redis.TTLSeconds)*time.Second)
		}
	}

	// События корзины
	var bus service.EventBus
	switch cfg.Events.Driver {
	case config.EventsKafka:
		if len(cfg.Events.KafkaBrokers) == 0 {
			log.Fatal("EVENTS_DRIVER=kafka, но KAFKA_BROKERS пуст")
		}
		producer := events.NewKafkaProducer(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		defer producer.Close()
		bus = producer
	case config.EventsAMQP:
		conn, err := events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.AMQPExchange)
		if err != nil {
			log.Fatal("Не удалось подключиться к RabbitMQ", zap.Error(err))
		}
		defer conn.Close()
		bus = events.NewAMQPPublisher(conn.Channel(), cfg.Events.AMQPExchange)
	}

	retry := service.DefaultRetryOptions()
	if cfg.Cart.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Cart.MaxAttempts
	}

	cartSvc := service.NewCartService(repo, bus, log, retry)
	catalogSvc := service.NewCatalogService(repo, productCache, log, retry)
	wishlistSvc := service.NewWishlistService(repo, log)
	dashboardSvc := service.NewDashboardService(repo, cartSvc)

	tokens := auth.NewHSProvider(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience)

	// gRPC
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}
	grpcServer := grpctransport.NewServer(grpctransport.NewHandler(cartSvc, catalogSvc), tokens, log)
	go func() {
		log.Info("Cart gRPC server started", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server stopped with error", zap.Error(err))
		}
	}()

	// HTTP
	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.Router(httpapi.Services{
			Cart:      cartSvc,
			Catalog:   catalogSvc,
			Wishlist:  wishlistSvc,
			Dashboard: dashboardSvc,
		}, tokens, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Cart HTTP server started", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server stopped with error", zap.Error(err))
		}
	}()

	// Возврат брошенных корзин
	sweep := sweeper.NewScheduler(cartSvc, cfg.Cart.TTL, log)
	if err := sweep.Start(ctx, cfg.Cart.SweepSchedule); err != nil {
		log.Fatal("Не удалось запустить sweeper", zap.Error(err))
	}

	<-ctx.Done()
	log.Info("Shutting down Cart service...")

	sweep.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", zap.Error(err))
	}
	grpcServer.GracefulStop()

	log.Info("Cart service stopped gracefully")
}
