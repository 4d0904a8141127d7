// Package config はアプリケーションの設定を管理します
// 環境変数から設定を読み込み、デフォルト値を提供します
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	defaultAPIAddr          = ":8080"                     // APIサーバーのデフォルトリッスンアドレス
	defaultRedisAddr        = "localhost:6379"            // Redisのデフォルト接続先
	defaultMongoURI         = "mongodb://localhost:27017" // MongoDBのデフォルト接続先
	defaultMongoDB          = "studyroom"                 // デフォルトのデータベース名
	defaultCheckoutSlackSec = 2                           // クライアントタイマーのずれとして許容する秒数
)

// defaultAllowedOrigins はCORSで許可するデフォルトのオリジン一覧
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// Config はアプリケーションの設定を保持します
// SocketSecret は信頼チャネル（ソケットサーバー）認可用の共有シークレットで、
// 起動時に一度だけ読み込まれ、以降は読み取り専用です
type Config struct {
	APIAddr          string   // APIサーバーのリッスンアドレス
	RedisAddr        string   // Redisの接続先
	MongoURI         string   // MongoDBの接続先
	MongoDB          string   // MongoDBのデータベース名
	JWTSecret        string   // ユーザーチャネルのJWT署名検証キー
	SocketSecret     string   // 信頼チャネルの共有シークレット
	CheckoutSlackSec int      // チェックアウト時刻計算の許容誤差（秒）
	AllowedOrigin    []string // CORSで許可するオリジン一覧
}

// Load は環境変数から設定を読み込みます
// .env ファイルが存在すれば先に読み込み、なければ環境変数のみを使用します
func Load() Config {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, relying on environment variables")
	}

	return Config{
		APIAddr:          envOr("API_ADDR", defaultAPIAddr),
		RedisAddr:        envOr("REDIS_ADDR", defaultRedisAddr),
		MongoURI:         envOr("MONGO_URI", defaultMongoURI),
		MongoDB:          envOr("MONGO_DB", defaultMongoDB),
		JWTSecret:        envOr("JWT_SECRET", ""),
		SocketSecret:     envOr("SOCKET_SHARED_SECRET", ""),
		CheckoutSlackSec: envInt("CHECKOUT_SLACK_SEC", defaultCheckoutSlackSec),
		AllowedOrigin:    envCSV("CORS_ALLOWED_ORIGINS", defaultAllowedOrigins),
	}
}

// envOr は環境変数から文字列を取得します
// 環境変数が設定されていない場合はデフォルト値を返します
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt は環境変数から整数を取得します
// 環境変数が設定されていない、または無効な値の場合はデフォルト値を返します
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			logrus.Warnf("invalid %s=%s, fallback to default (%d)", key, v, def)
			return def
		}
		return i
	}
	return def
}

// envCSV は環境変数からカンマ区切りの文字列リストを取得します
// 環境変数が設定されていない、または空の場合はデフォルト値を返します
func envCSV(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
