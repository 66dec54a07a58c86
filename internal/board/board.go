// Package board 维护服务端看到的最新班表快照，并根据快照、偏好和锚点日期计算视图。
//
// 订阅推送的数据总是被视为权威状态：写入之后不会直接修改本地快照，
// 而是等待下一次推送。
package board

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/dateutil"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/domain"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/ingest"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/views"
)

type Options struct {
	Ingest           ingest.Options
	ResubscribeDelay time.Duration
	Now              func() time.Time
}

type Status struct {
	Ready   bool   `json:"ready"`
	Version uint64 `json:"version"`
	Count   int    `json:"count"`
	Error   string `json:"error,omitempty"` // 最近一次订阅失败的信息，已有的数据仍然可用
}

type memoKey struct {
	version uint64
	query   views.Query
}

type Board struct {
	store ScheduleStore
	prefs PreferenceStore
	opts  Options

	mu          sync.RWMutex
	entries     []domain.ScheduleEntry
	version     uint64
	ready       bool
	lastErr     error
	closed      bool
	subscribed  bool
	unsubscribe func()
	retry       *time.Timer

	watchers   map[int]func([]domain.ScheduleEntry)
	nextWatch  int
	memoMu     sync.Mutex
	memoKey    *memoKey
	memoResult *views.Views
}

func New(store ScheduleStore, prefs PreferenceStore, opts Options) *Board {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ResubscribeDelay <= 0 {
		opts.ResubscribeDelay = 5 * time.Second
	}

	return &Board{
		store:    store,
		prefs:    prefs,
		opts:     opts,
		entries:  make([]domain.ScheduleEntry, 0),
		watchers: make(map[int]func([]domain.ScheduleEntry)),
	}
}

// Start 开始订阅共享班表
func (b *Board) Start() {
	b.mu.Lock()
	if b.closed || b.subscribed {
		b.mu.Unlock()
		return
	}
	b.subscribed = true
	b.mu.Unlock()

	// 订阅时不能持有锁，实现可能在 Subscribe 返回前就回调 onChange
	unsubscribe := b.store.Subscribe(b.onChange, b.onError)

	b.mu.Lock()
	closed := b.closed
	if !closed {
		b.unsubscribe = unsubscribe
	}
	b.mu.Unlock()

	if closed {
		unsubscribe()
	}
}

func (b *Board) Close() {
	b.mu.Lock()
	b.closed = true
	unsubscribe := b.unsubscribe
	b.unsubscribe = nil
	if b.retry != nil {
		b.retry.Stop()
	}
	b.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (b *Board) onChange(entries []domain.ScheduleEntry) {
	b.replaceSnapshot(entries, true)
}

// replaceSnapshot 替换本地快照并通知监听器，pushed 表示数据来自存储的推送
func (b *Board) replaceSnapshot(entries []domain.ScheduleEntry, pushed bool) {
	snapshot := slices.Clone(entries)
	if snapshot == nil {
		snapshot = make([]domain.ScheduleEntry, 0)
	}

	b.mu.Lock()
	b.entries = snapshot
	b.version++
	if pushed {
		b.ready = true
		b.lastErr = nil
	}
	watchers := make([]func([]domain.ScheduleEntry), 0, len(b.watchers))
	for _, fn := range b.watchers {
		watchers = append(watchers, fn)
	}
	b.mu.Unlock()

	for _, fn := range watchers {
		fn(snapshot)
	}
}

// onError 在订阅协程中被调用，保留已有数据，并在延迟后重新订阅
func (b *Board) onError(err error) {
	slog.Error("班表订阅失败", "error", err)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastErr = err
	if b.closed {
		return
	}
	b.retry = time.AfterFunc(b.opts.ResubscribeDelay, b.resubscribe)
}

func (b *Board) resubscribe() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	old := b.unsubscribe
	b.unsubscribe = nil
	b.subscribed = false
	b.mu.Unlock()

	// 旧的订阅协程已经退出，这里只是释放资源
	if old != nil {
		old()
	}

	slog.Info("正在重新订阅班表")
	b.Start()
}

// Entries 返回当前快照，调用方不应修改返回的切片
func (b *Board) Entries() []domain.ScheduleEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.entries
}

func (b *Board) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	status := Status{Ready: b.ready, Version: b.version, Count: len(b.entries)}
	if b.lastErr != nil {
		status.Error = b.lastErr.Error()
	}
	return status
}

// Watch 注册一个监听器，每次收到新的快照时调用；返回的函数用于取消监听
func (b *Board) Watch(fn func([]domain.ScheduleEntry)) (cancel func()) {
	b.mu.Lock()
	id := b.nextWatch
	b.nextWatch++
	b.watchers[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.watchers, id)
		b.mu.Unlock()
	}
}

func (b *Board) LastUpdated(ctx context.Context) (*domain.ScheduleMeta, error) {
	return b.store.LastUpdated(ctx)
}

// Upload 解析上传的文件并整体替换共享班表。
// 解析失败时不会写入存储；写入失败时本地快照保持不变。
func (b *Board) Upload(ctx context.Context, clientID, filename string, data []byte) (*ingest.Result, error) {
	result, err := ingest.Ingest(data, filename, b.opts.Ingest)
	if err != nil {
		return result, err
	}

	if err := b.store.ReplaceAll(ctx, result.Entries); err != nil {
		return result, err
	}

	slog.Info("班表已上传", "client", clientID, "count", len(result.Entries), "warnings", result.ErrorCount())

	if v, ok := b.prefs.Get(ctx, clientID, domain.PrefCurrentUser); !ok || v == "" {
		b.prefs.Set(ctx, clientID, domain.PrefCurrentUser, result.Entries[0].Person)
	}

	return result, nil
}

// Clear 清空共享班表并把该客户端的偏好恢复为默认值
func (b *Board) Clear(ctx context.Context, clientID string) error {
	if err := b.store.Clear(ctx); err != nil {
		return err
	}

	// 清空已经提交，不必等推送，否则偏好会继续回退到旧数据中的第一个人
	b.replaceSnapshot(nil, false)

	defaults := domain.DefaultPreferences()
	b.prefs.Set(ctx, clientID, domain.PrefCurrentUser, defaults.CurrentUser)
	b.prefs.Set(ctx, clientID, domain.PrefViewMode, string(defaults.ViewMode))
	b.prefs.Set(ctx, clientID, domain.PrefTestFilter, defaults.TestFilter)

	slog.Info("班表已清空", "client", clientID)
	return nil
}

// Preferences 返回客户端的偏好，没有保存过的项使用默认值。
// 没有选中的人时，默认选中班表中第一条记录的人（不会写回存储）。
func (b *Board) Preferences(ctx context.Context, clientID string) domain.Preferences {
	prefs := domain.DefaultPreferences()

	if v, ok := b.prefs.Get(ctx, clientID, domain.PrefCurrentUser); ok {
		prefs.CurrentUser = v
	}
	if v, ok := b.prefs.Get(ctx, clientID, domain.PrefViewMode); ok && domain.ViewMode(v).Valid() {
		prefs.ViewMode = domain.ViewMode(v)
	}
	if v, ok := b.prefs.Get(ctx, clientID, domain.PrefTestFilter); ok && v != "" {
		prefs.TestFilter = v
	}

	if prefs.CurrentUser == "" {
		if entries := b.Entries(); len(entries) > 0 {
			prefs.CurrentUser = entries[0].Person
		}
	}

	return prefs
}

type PreferencesPatch struct {
	CurrentUser *string
	ViewMode    *domain.ViewMode
	TestFilter  *string
}

func (b *Board) UpdatePreferences(ctx context.Context, clientID string, patch PreferencesPatch) domain.Preferences {
	if patch.CurrentUser != nil {
		b.prefs.Set(ctx, clientID, domain.PrefCurrentUser, *patch.CurrentUser)
	}
	if patch.ViewMode != nil {
		b.prefs.Set(ctx, clientID, domain.PrefViewMode, string(*patch.ViewMode))
	}
	if patch.TestFilter != nil {
		b.prefs.Set(ctx, clientID, domain.PrefTestFilter, *patch.TestFilter)
	}

	return b.Preferences(ctx, clientID)
}

type ViewQuery struct {
	Person *string // 为 nil 时使用偏好中的值
	Filter *string
	Week   string
	Month  string
}

// View 合并查询参数和客户端偏好后计算视图。
// 相同的快照版本和相同的输入会直接返回上一次的结果。
func (b *Board) View(ctx context.Context, clientID string, q ViewQuery) (*views.Views, domain.Preferences, error) {
	prefs := b.Preferences(ctx, clientID)

	query := views.Query{
		Person: prefs.CurrentUser,
		Filter: prefs.TestFilter,
		Week:   q.Week,
		Month:  q.Month,
		Today:  dateutil.ISODate(b.opts.Now()),
	}
	if q.Person != nil {
		query.Person = *q.Person
	}
	if q.Filter != nil {
		query.Filter = *q.Filter
	}
	if query.Week == "" {
		query.Week = query.Today
	}
	if query.Month == "" {
		query.Month = dateutil.MonthOf(b.opts.Now())
	}

	b.mu.RLock()
	entries, version := b.entries, b.version
	b.mu.RUnlock()

	key := memoKey{version: version, query: query}

	b.memoMu.Lock()
	defer b.memoMu.Unlock()

	if b.memoKey != nil && *b.memoKey == key {
		return b.memoResult, prefs, nil
	}

	v, err := views.Build(entries, query)
	if err != nil {
		return nil, prefs, err
	}

	b.memoKey = &key
	b.memoResult = v
	return v, prefs, nil
}
