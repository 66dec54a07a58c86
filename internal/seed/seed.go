// Package seed 提供开发时使用的示例数据工具：生成示例工作簿，以及不经过 HTTP 直接导入文件。
package seed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/dateutil"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/domain"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/ingest"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Schedule"

// 日期列写成表格序列号，和真实导出的工作簿一致
const unixEpochSerial = 25569

var sampleHeader = []any{
	"Date", "Name", "Test", "Time", "Location", "Zip Code", "Test ID", "MEP Description",
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func dateSerial(date string) (int64, error) {
	t, err := dateutil.ParseISO(date)
	if err != nil {
		return 0, err
	}
	return t.Unix()/86400 + unixEpochSerial, nil
}

// WriteSampleWorkbook 把 entries 写成一个只有一张工作表的 xlsx 文件
func WriteSampleWorkbook(w io.Writer, entries []domain.ScheduleEntry) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("无法关闭工作簿", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, "A1", &sampleHeader); err != nil {
		return err
	}

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return err
	}

	for i, e := range entries {
		serial, err := dateSerial(e.Date)
		if err != nil {
			return fmt.Errorf("第 %d 条记录的日期无效: %w", i, err)
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			serial,
			e.Person,
			e.Test,
			deref(e.Time),
			deref(e.Location),
			deref(e.ZipCode),
			deref(e.TestID),
			deref(e.MEP),
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}

	if len(entries) > 0 {
		last, err := excelize.CoordinatesToCellName(1, len(entries)+1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, "A2", last, dateStyle); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheetName, "A", "H", 18); err != nil {
		return err
	}

	_, err = f.WriteTo(w)
	return err
}

type replacer interface {
	ReplaceAll(ctx context.Context, entries []domain.ScheduleEntry) error
}

// ImportFile 解析 path 指向的文件并整体替换共享班表
func ImportFile(ctx context.Context, store replacer, path string, opts ingest.Options) (*ingest.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	result, err := ingest.Ingest(data, filepath.Base(path), opts)
	if err != nil {
		return result, err
	}

	if err := store.ReplaceAll(ctx, result.Entries); err != nil {
		return result, err
	}

	return result, nil
}
