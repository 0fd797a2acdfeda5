package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"user-network/config"
	"user-network/handlers"
	"user-network/services"
	"user-network/store"
	"user-network/utils/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	userStore, err := openStore(ctx, cfg, zlog)
	cancel()
	if err != nil {
		zlog.Fatal("Failed to open store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}

	userService := services.NewUserService(userStore, zlog)
	router := handlers.NewRouter(userService, cfg.AllowedOrigins, zlog)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		zlog.Info("Server starting", zap.String("addr", srv.Addr), zap.String("backend", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server shutdown failed", zap.Error(err))
	}
	if err := userStore.Close(shutdownCtx); err != nil {
		zlog.Error("Failed to close store", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg config.Config, zlog *zap.Logger) (services.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		return store.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, zlog)
	case config.BackendRedis:
		return store.NewRedisStore(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, zlog)
	case config.BackendNeo4j:
		return store.NewNeo4jStore(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, zlog)
	case config.BackendMemory:
		zlog.Warn("Using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
