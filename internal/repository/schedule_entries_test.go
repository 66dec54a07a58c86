package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/domain"
)

func TestBuildInsertQuery(t *testing.T) {
	query := buildInsertQuery(2)

	assert.True(t, strings.HasPrefix(query, "INSERT INTO schedule_entries (id, position, person, test, date, time, location, zip_code, test_id, mep) VALUES "))
	assert.Contains(t, query, "($1, $2, $3, $4, $5, $6, $7, $8, $9, $10), ($11, $12")
	assert.True(t, strings.HasSuffix(query, "$20)"))
}

func TestInsertArgs(t *testing.T) {
	loc := "Site A"
	entries := []domain.ScheduleEntry{
		{ID: "0", Person: "Alice", Test: "Density", Date: "2024-06-01"},
		{Person: "Bob", Test: "Proctor", Date: "2024-06-02", Location: &loc},
		{ID: "2", Person: "Carol", Test: "Density", Date: "2024-06-03"},
	}

	args := insertArgs(entries, 1, 3)
	assert.Len(t, args, 2*entryColumnCount)

	// 没有 ID 的条目使用它在批次中的位置
	assert.Equal(t, "1", args[0])
	assert.Equal(t, 1, args[1])
	assert.Equal(t, "Bob", args[2])
	assert.Equal(t, &loc, args[6])
	assert.Nil(t, args[5].(*string))
	assert.Equal(t, "2", args[entryColumnCount])
}

func TestNullableString(t *testing.T) {
	assert.Nil(t, nullableString(sql.NullString{}))
	assert.Nil(t, nullableString(sql.NullString{String: "", Valid: true}))

	v := nullableString(sql.NullString{String: "x", Valid: true})
	if assert.NotNil(t, v) {
		assert.Equal(t, "x", *v)
	}
}

func sampleEntries(n int) []domain.ScheduleEntry {
	entries := make([]domain.ScheduleEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, domain.ScheduleEntry{Person: "Alice", Test: "Density", Date: "2024-06-01"})
	}
	return entries
}

func expectReplace(mock sqlmock.Sqlmock, inserts int, count int) {
	mock.ExpectBegin()
	mock.ExpectExec("LOCK TABLE schedule_entries IN EXCLUSIVE MODE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM schedule_entries").WillReturnResult(sqlmock.NewResult(0, 4))
	for i := 0; i < inserts; i++ {
		mock.ExpectExec("INSERT INTO schedule_entries").WillReturnResult(sqlmock.NewResult(0, 2))
	}
	mock.ExpectExec("INSERT INTO schedule_meta").WithArgs(sqlmock.AnyArg(), count).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

// subscribeChannel 在测试中单独订阅变更频道，返回收到的消息内容
func subscribeChannel(t *testing.T, r *Repository) <-chan string {
	t.Helper()

	ctx := context.Background()
	pubsub := r.rdb.Subscribe(ctx, testChannel)
	t.Cleanup(func() { _ = pubsub.Close() })
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	out := make(chan string, 4)
	go func() {
		for msg := range pubsub.Channel() {
			out <- msg.Payload
		}
	}()
	return out
}

func TestReplaceAllLocksTableAndPublishesBatch(t *testing.T) {
	r, mock, _ := newTestRepository(t)
	messages := subscribeChannel(t, r)

	// 3 行，每批 2 行，需要两条 INSERT
	expectReplace(mock, 2, 3)

	require.NoError(t, r.ReplaceAll(context.Background(), sampleEntries(3)))
	require.NoError(t, mock.ExpectationsWereMet())

	select {
	case msg := <-messages:
		_, err := uuid.Parse(msg)
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("没有收到变更通知")
	}
}

func TestReplaceAllRollsBackOnInsertFailure(t *testing.T) {
	r, mock, _ := newTestRepository(t)
	messages := subscribeChannel(t, r)

	insertErr := errors.New("value too long for type character varying")
	mock.ExpectBegin()
	mock.ExpectExec("LOCK TABLE schedule_entries IN EXCLUSIVE MODE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM schedule_entries").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("INSERT INTO schedule_entries").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO schedule_entries").WillReturnError(insertErr)
	mock.ExpectRollback()

	err := r.ReplaceAll(context.Background(), sampleEntries(3))

	var storeErr *domain.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "replace", storeErr.Op)
	assert.ErrorIs(t, err, insertErr)
	require.NoError(t, mock.ExpectationsWereMet())

	select {
	case msg := <-messages:
		t.Fatalf("回滚后不应发布通知: %s", msg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestReplaceAllRejectsTooManyRows(t *testing.T) {
	r, mock, _ := newTestRepository(t)

	err := r.ReplaceAll(context.Background(), sampleEntries(11))
	assert.ErrorIs(t, err, domain.ErrTooManyRows)

	// 超过上限时不会开启事务
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearReplacesWithEmptySet(t *testing.T) {
	r, mock, _ := newTestRepository(t)

	expectReplace(mock, 0, 0)

	require.NoError(t, r.Clear(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLastUpdated(t *testing.T) {
	r, mock, _ := newTestRepository(t)
	ctx := context.Background()

	expectMeta(mock, "", 0)
	meta, err := r.LastUpdated(ctx)
	require.NoError(t, err)
	assert.Nil(t, meta)

	expectMeta(mock, "5f0c3a0e-8d5c-4a43-9d0e-0a4d1b7f2a11", 3)
	meta, err = r.LastUpdated(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 3, meta.Count)
	assert.Equal(t, "5f0c3a0e-8d5c-4a43-9d0e-0a4d1b7f2a11", meta.BatchID)

	mock.ExpectQuery("FROM schedule_meta").WillReturnError(errors.New("connection reset"))
	_, err = r.LastUpdated(ctx)
	var storeErr *domain.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "meta", storeErr.Op)
}

func TestGetAllScheduleEntries(t *testing.T) {
	r, mock, _ := newTestRepository(t)

	expectEntries(mock, "Alice", "Bob")

	entries, err := r.GetAllScheduleEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2024-06-01", entries[0].Date)
	assert.Equal(t, "Bob", entries[1].Person)
	assert.Nil(t, entries[0].Time)
	require.NotNil(t, entries[0].Location)
	assert.Equal(t, "Site A", *entries[0].Location)
}
