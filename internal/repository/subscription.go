package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/domain"
)

var ErrSubscriptionClosed = errors.New("班表变更通知通道已关闭")

// Subscribe 通过 redis 的发布订阅接收变更通知，每次收到通知都从数据库重新读取完整的班表。
// 订阅建立后会立即推送一次当前数据。配置了 PollInterval 时还会定期比对批次号，
// 发现通知丢失后同样重新读取。任何失败都只回调一次 onError，之后协程退出。
func (r *Repository) Subscribe(onChange func([]domain.ScheduleEntry), onError func(error)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := r.rdb.Subscribe(ctx, r.cfg.Redis.ChangeChannel)
	local, stopLocal := r.watchLocal()
	done := make(chan struct{})

	go func() {
		defer close(done)

		fail := func(err error) {
			// 主动取消订阅时不需要报告错误
			if ctx.Err() != nil {
				return
			}
			onError(&domain.StoreError{Op: "subscribe", Err: err})
		}

		// 先确认订阅成功，保证之后的变更不会被漏掉
		if _, err := pubsub.Receive(ctx); err != nil {
			fail(err)
			return
		}
		ch := pubsub.Channel()

		var poll <-chan time.Time
		if interval := r.cfg.Schedule.PollInterval; interval > 0 {
			ticker := time.NewTicker(time.Duration(interval) * time.Second)
			defer ticker.Stop()
			poll = ticker.C
		}

		var batchID string
		push := func() bool {
			// 先读批次号再读条目，两次读取之间的变更会在下一次比对时被发现
			id, err := r.currentBatchID(ctx)
			if err != nil {
				fail(err)
				return false
			}
			entries, err := r.GetAllScheduleEntries(ctx)
			if err != nil {
				fail(err)
				return false
			}
			batchID = id
			onChange(entries)
			return true
		}

		if !push() {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					fail(ErrSubscriptionClosed)
					return
				}
				if !push() {
					return
				}
			case <-local:
				if !push() {
					return
				}
			case <-poll:
				id, err := r.currentBatchID(ctx)
				if err != nil {
					fail(err)
					return
				}
				if id != batchID && !push() {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = pubsub.Close()
			<-done
			stopLocal()
		})
	}
}

func (r *Repository) currentBatchID(ctx context.Context) (string, error) {
	meta, err := r.LastUpdated(ctx)
	if err != nil {
		return "", err
	}
	if meta == nil {
		return "", nil
	}
	return meta.BatchID, nil
}
