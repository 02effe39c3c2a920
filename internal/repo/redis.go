package repo

import (
	"context"
	"time"

	"party-service/internal/config"
	"party-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var RDB *redis.Client

// InitRedis connects the shared client used for live state, deltas and the bus.
func InitRedis() {
	conf := config.GlobalConfig.Redis
	timeout := config.GlobalConfig.Sync.StoreTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	RDB = redis.NewClient(&redis.Options{
		Addr:         conf.Addr,
		Password:     conf.Password,
		DB:           conf.DB,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := RDB.Ping(ctx).Err(); err != nil {
		logger.Log.Fatal("Failed to connect to Redis", zap.String("addr", conf.Addr), zap.Error(err))
	}
}
