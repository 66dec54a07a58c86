package repository

import (
	"database/sql"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/config"
)

type Repository struct {
	cfg    *config.Config
	dbpool *sql.DB
	rdb    *redis.Client

	// 同一进程内的订阅者，变更通知发布失败时直接唤醒它们重新加载
	mu          sync.Mutex
	local       map[int]chan struct{}
	nextLocalID int
}

func NewRepository(cfg *config.Config, dbpool *sql.DB, rdb *redis.Client) *Repository {
	return &Repository{
		cfg:    cfg,
		dbpool: dbpool,
		rdb:    rdb,
		local:  make(map[int]chan struct{}),
	}
}

func (r *Repository) watchLocal() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	r.mu.Lock()
	id := r.nextLocalID
	r.nextLocalID++
	r.local[id] = ch
	r.mu.Unlock()

	return ch, func() {
		r.mu.Lock()
		delete(r.local, id)
		r.mu.Unlock()
	}
}

func (r *Repository) notifyLocal() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range r.local {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
