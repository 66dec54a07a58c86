// Package boardtest 提供内存中的存储实现，供测试使用。
package boardtest

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/domain"
)

type subscriber struct {
	onChange func([]domain.ScheduleEntry)
	onError  func(error)
}

// MemoryStore 是 board.ScheduleStore 的内存实现，推送是同步的
type MemoryStore struct {
	MaxRows    int   // 大于 0 时超过这个行数的写入会被拒绝
	FailWrites error // 不为 nil 时所有写入都返回这个错误

	mu      sync.Mutex
	held    bool
	pending [][]domain.ScheduleEntry
	entries []domain.ScheduleEntry
	meta    *domain.ScheduleMeta
	subs    map[int]subscriber
	nextSub int
	writes  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[int]subscriber)}
}

func (s *MemoryStore) ReplaceAll(_ context.Context, entries []domain.ScheduleEntry) error {
	s.mu.Lock()
	if s.FailWrites != nil {
		s.mu.Unlock()
		return &domain.StoreError{Op: "replace", Err: s.FailWrites}
	}
	if s.MaxRows > 0 && len(entries) > s.MaxRows {
		s.mu.Unlock()
		return domain.ErrTooManyRows
	}

	stored := slices.Clone(entries)
	for i := range stored {
		if stored[i].ID == "" {
			stored[i].ID = strconv.Itoa(i)
		}
	}
	slices.SortStableFunc(stored, func(a, b domain.ScheduleEntry) int { return cmp.Compare(a.Date, b.Date) })

	s.entries = stored
	s.writes++
	s.meta = &domain.ScheduleMeta{
		BatchID:   strconv.Itoa(s.writes),
		UpdatedAt: time.Now(),
		Count:     len(stored),
	}
	if s.held {
		s.pending = append(s.pending, slices.Clone(stored))
		s.mu.Unlock()
		return nil
	}
	subs := s.snapshotSubs()
	s.mu.Unlock()

	for _, sub := range subs {
		sub.onChange(slices.Clone(stored))
	}
	return nil
}

// Hold 让之后的写入只保存数据，推送延迟到 Release 时再发送，用来模拟异步的变更通知
func (s *MemoryStore) Hold() {
	s.mu.Lock()
	s.held = true
	s.mu.Unlock()
}

func (s *MemoryStore) Release() {
	s.mu.Lock()
	s.held = false
	pending := s.pending
	s.pending = nil
	subs := s.snapshotSubs()
	s.mu.Unlock()

	for _, entries := range pending {
		for _, sub := range subs {
			sub.onChange(slices.Clone(entries))
		}
	}
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	return s.ReplaceAll(ctx, nil)
}

func (s *MemoryStore) Subscribe(onChange func([]domain.ScheduleEntry), onError func(error)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = subscriber{onChange: onChange, onError: onError}
	current := slices.Clone(s.entries)
	s.mu.Unlock()

	onChange(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *MemoryStore) LastUpdated(_ context.Context) (*domain.ScheduleMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meta == nil {
		return nil, nil
	}
	meta := *s.meta
	return &meta, nil
}

// Fail 模拟连接中断：所有订阅者收到一次 onError 后被移除
func (s *MemoryStore) Fail(err error) {
	s.mu.Lock()
	subs := s.snapshotSubs()
	s.subs = make(map[int]subscriber)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.onError(&domain.StoreError{Op: "subscribe", Err: err})
	}
}

func (s *MemoryStore) Entries() []domain.ScheduleEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

func (s *MemoryStore) ActiveSubscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *MemoryStore) snapshotSubs() []subscriber {
	subs := make([]subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	return subs
}

// MemoryPreferences 是 board.PreferenceStore 的内存实现
type MemoryPreferences struct {
	mu     sync.Mutex
	values map[string]map[string]string
}

func NewMemoryPreferences() *MemoryPreferences {
	return &MemoryPreferences{values: make(map[string]map[string]string)}
}

func (p *MemoryPreferences) Get(_ context.Context, clientID, key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[clientID][key]
	return v, ok
}

func (p *MemoryPreferences) Set(_ context.Context, clientID, key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.values[clientID] == nil {
		p.values[clientID] = make(map[string]string)
	}
	p.values[clientID][key] = value
}
