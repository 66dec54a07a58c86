package board

import (
	"context"

	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/domain"
)

// ScheduleStore 是共享班表的存储。写入总是整体替换：
// ReplaceAll 要么完整地装入新的条目集合，要么什么都不改变。
type ScheduleStore interface {
	ReplaceAll(ctx context.Context, entries []domain.ScheduleEntry) error
	Clear(ctx context.Context) error
	// Subscribe 在订阅后立即推送一次完整的条目集合（按日期升序），之后每次变更都会再次推送。
	// 无法恢复的失败只会通过 onError 回调一次，之后不再推送。回调中不能调用返回的 unsubscribe。
	Subscribe(onChange func([]domain.ScheduleEntry), onError func(error)) (unsubscribe func())
	// LastUpdated 在从未上传过时返回 nil
	LastUpdated(ctx context.Context) (*domain.ScheduleMeta, error)
}

// PreferenceStore 保存每个客户端的界面偏好。实现需要自行吞掉并记录错误。
type PreferenceStore interface {
	Get(ctx context.Context, clientID, key string) (string, bool)
	Set(ctx context.Context, clientID, key, value string)
}
