package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/config"
)

// PreferenceStore 把每个客户端的界面偏好保存在 redis 的 hash 中。
// 偏好不是关键数据，所有错误都只记录日志。
type PreferenceStore struct {
	cfg *config.Config
	rdb *redis.Client
}

func NewPreferenceStore(cfg *config.Config, rdb *redis.Client) *PreferenceStore {
	return &PreferenceStore{
		cfg: cfg,
		rdb: rdb,
	}
}

func (p *PreferenceStore) key(clientID string) string {
	return p.cfg.Redis.PreferencePrefix + clientID
}

func (p *PreferenceStore) Get(ctx context.Context, clientID, key string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.Redis.OperationExpiration)*time.Second)
	defer cancel()

	value, err := p.rdb.HGet(ctx, p.key(clientID), key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("无法读取偏好设置", "client", clientID, "key", key, "error", err)
		}
		return "", false
	}

	return value, true
}

func (p *PreferenceStore) Set(ctx context.Context, clientID, key, value string) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.Redis.OperationExpiration)*time.Second)
	defer cancel()

	if err := p.rdb.HSet(ctx, p.key(clientID), key, value).Err(); err != nil {
		slog.Warn("无法保存偏好设置", "client", clientID, "key", key, "error", err)
	}
}
