package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studyroom-api/internal/config"
	"studyroom-api/internal/handlers"
	httpx "studyroom-api/internal/http"
	"studyroom-api/internal/repo"
	"studyroom-api/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func main() {
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET is required")
	}
	if cfg.SocketSecret == "" {
		logrus.Fatal("SOCKET_SHARED_SECRET is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		PoolSize:     10,              // 接続プールサイズ
		MinIdleConns: 5,               // 最小アイドル接続数
		MaxRetries:   3,               // リトライ回数
		DialTimeout:  5 * time.Second, // 接続タイムアウト
		ReadTimeout:  3 * time.Second, // 読み込みタイムアウト
		WriteTimeout: 3 * time.Second, // 書き込みタイムアウト
		PoolTimeout:  4 * time.Second, // プールからの取得タイムアウト
	})

	// Redis接続確認
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logrus.Fatalf("failed to connect to redis: %v", err)
	}
	logrus.Info("connected to redis")

	// MongoDB接続確認（学習記録・サムネイル用）
	mongoCtx, cancelMongo := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelMongo()
	mongoClient, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logrus.Fatalf("failed to connect to mongodb: %v", err)
	}
	if err := mongoClient.Ping(mongoCtx, readpref.Primary()); err != nil {
		logrus.Fatalf("failed to ping mongodb: %v", err)
	}
	logrus.Info("connected to mongodb")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			logrus.Errorf("error disconnecting from mongodb: %v", err)
		}
	}()

	db := mongoClient.Database(cfg.MongoDB)
	recordRepo, err := repo.NewMongoRecordRepo(mongoCtx, db)
	if err != nil {
		logrus.Fatalf("failed to create record index: %v", err)
	}
	imageRepo := repo.NewMongoImageRepo(db)
	roomRepo := repo.NewRedisRoomRepo(rdb)

	occ := service.NewOccupancyManager(roomRepo)
	rec := service.NewSessionRecorder(recordRepo, cfg.CheckoutSlackSec)
	svc := service.NewRoomService(roomRepo, imageRepo, occ, rec, cfg.SocketSecret)

	h := handlers.NewRoomHandler(svc)
	sh := handlers.NewSocketHandler(svc)
	wsh := handlers.NewWebSocketHandler(svc, cfg.SocketSecret)
	router := httpx.NewRouter(h, sh, wsh, cfg.JWTSecret, cfg.AllowedOrigin)

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown用のシグナルチャネル
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// サーバーを別goroutineで起動
	go func() {
		logrus.Infof("listening on %s", cfg.APIAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("server error: %v", err)
		}
	}()

	// シャットダウンシグナルを待つ
	<-sigChan
	logrus.Info("shutdown signal received, shutting down gracefully...")

	// 30秒のタイムアウトでGraceful Shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("server shutdown error: %v", err)
	}

	logrus.Info("server stopped")
}
