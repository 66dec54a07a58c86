package repository

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/config"
)

const testChannel = "schedule:changed"

var entryColumns = []string{"id", "person", "test", "date", "time", "location", "zip_code", "test_id", "mep"}

func newTestRepository(t *testing.T) (*Repository, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{}
	cfg.Database.QueryTimeout = 5
	cfg.Database.TransactionTimeout = 5
	cfg.Database.MaxRows = 10
	cfg.Database.InsertBatchSize = 2
	cfg.Redis.OperationExpiration = 5
	cfg.Redis.ChangeChannel = testChannel

	return NewRepository(cfg, db, rdb), mock, mr
}

func expectMeta(mock sqlmock.Sqlmock, batchID string, count int) {
	rows := sqlmock.NewRows([]string{"batch_id", "updated_at", "count"})
	if batchID != "" {
		rows.AddRow(batchID, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), count)
	}
	mock.ExpectQuery("SELECT batch_id, updated_at, count FROM schedule_meta").WillReturnRows(rows)
}

// expectEntries 期望一次完整的条目读取，people 中的每个人生成一行
func expectEntries(mock sqlmock.Sqlmock, people ...string) {
	rows := sqlmock.NewRows(entryColumns)
	for i, p := range people {
		values := []driver.Value{
			string(rune('0' + i)), p, "Density", time.Date(2024, 6, 1+i, 0, 0, 0, 0, time.UTC),
			nil, "Site A", nil, nil, nil,
		}
		rows.AddRow(values...)
	}
	mock.ExpectQuery("FROM schedule_entries").WillReturnRows(rows)
}
