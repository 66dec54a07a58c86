package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/dateutil"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/domain"
)

const entryColumnCount = 10

func (r *Repository) GetAllScheduleEntries(ctx context.Context) ([]domain.ScheduleEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT id, person, test, date, time, location, zip_code, test_id, mep
		FROM schedule_entries
		ORDER BY date ASC, position ASC
	`

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.ScheduleEntry, 0)
	for rows.Next() {
		var row struct {
			ID       string
			Person   string
			Test     string
			Date     time.Time
			Time     sql.NullString
			Location sql.NullString
			ZipCode  sql.NullString
			TestID   sql.NullString
			MEP      sql.NullString
		}

		dst := []any{
			&row.ID,
			&row.Person,
			&row.Test,
			&row.Date,
			&row.Time,
			&row.Location,
			&row.ZipCode,
			&row.TestID,
			&row.MEP,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		entries = append(entries, domain.ScheduleEntry{
			ID:       row.ID,
			Person:   row.Person,
			Test:     row.Test,
			Date:     row.Date.Format(dateutil.ISOLayout),
			Time:     nullableString(row.Time),
			Location: nullableString(row.Location),
			ZipCode:  nullableString(row.ZipCode),
			TestID:   nullableString(row.TestID),
			MEP:      nullableString(row.MEP),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// ReplaceAll 在一个事务中删除旧的条目、写入新的条目并更新元数据。
// 超过 MaxRows 时直接拒绝，不会截断。
func (r *Repository) ReplaceAll(ctx context.Context, entries []domain.ScheduleEntry) error {
	if len(entries) > r.cfg.Database.MaxRows {
		return fmt.Errorf("%w: %d 行，上限为 %d 行", domain.ErrTooManyRows, len(entries), r.cfg.Database.MaxRows)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	batchID := uuid.New()
	if err := r.replaceAll(ctx, batchID, entries); err != nil {
		return &domain.StoreError{Op: "replace", Err: err}
	}

	// 数据已经提交。通知失败时本进程的订阅者直接重新加载，其他进程靠定期比对批次号发现变更
	if err := r.rdb.Publish(ctx, r.cfg.Redis.ChangeChannel, batchID.String()).Err(); err != nil {
		slog.Error("无法发布班表变更通知", "batch", batchID.String(), "error", err)
		r.notifyLocal()
	}

	return nil
}

func (r *Repository) Clear(ctx context.Context) error {
	return r.ReplaceAll(ctx, nil)
}

func (r *Repository) replaceAll(ctx context.Context, batchID uuid.UUID, entries []domain.ScheduleEntry) error {
	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 并发的替换在这里排队，后提交的一方看得到先提交的数据并把它整体删掉
	if _, err := tx.ExecContext(ctx, `LOCK TABLE schedule_entries IN EXCLUSIVE MODE`); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_entries`); err != nil {
		return err
	}

	batchSize := r.cfg.Database.InsertBatchSize
	if batchSize <= 0 {
		batchSize = len(entries)
	}

	for start := 0; start < len(entries); start += batchSize {
		end := min(start+batchSize, len(entries))

		query := buildInsertQuery(end - start)
		if _, err := tx.ExecContext(ctx, query, insertArgs(entries, start, end)...); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO schedule_meta (id, batch_id, updated_at, count)
		VALUES (1, $1, now(), $2)
		ON CONFLICT (id) DO UPDATE
		SET batch_id = EXCLUDED.batch_id, updated_at = EXCLUDED.updated_at, count = EXCLUDED.count
	`
	if _, err := tx.ExecContext(ctx, query, batchID.String(), len(entries)); err != nil {
		return err
	}

	return tx.Commit()
}

// buildInsertQuery 生成一次插入 n 行的 INSERT 语句
func buildInsertQuery(n int) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO schedule_entries (id, position, person, test, date, time, location, zip_code, test_id, mep) VALUES ")

	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 0; j < entryColumnCount; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(i*entryColumnCount + j + 1))
		}
		sb.WriteString(")")
	}

	return sb.String()
}

// insertArgs 返回 entries[start:end] 的参数，position 是条目在整个批次中的下标
func insertArgs(entries []domain.ScheduleEntry, start, end int) []any {
	args := make([]any, 0, (end-start)*entryColumnCount)
	for i := start; i < end; i++ {
		e := entries[i]
		id := e.ID
		if id == "" {
			id = strconv.Itoa(i)
		}
		args = append(args, id, i, e.Person, e.Test, e.Date, e.Time, e.Location, e.ZipCode, e.TestID, e.MEP)
	}
	return args
}

// LastUpdated 返回最近一次替换的元数据，从未上传过时返回 nil
func (r *Repository) LastUpdated(ctx context.Context) (*domain.ScheduleMeta, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `SELECT batch_id, updated_at, count FROM schedule_meta WHERE id = 1`

	meta := &domain.ScheduleMeta{}
	if err := r.dbpool.QueryRowContext(ctx, query).Scan(&meta.BatchID, &meta.UpdatedAt, &meta.Count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, &domain.StoreError{Op: "meta", Err: err}
	}

	return meta, nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid || s.String == "" {
		return nil
	}
	v := s.String
	return &v
}
