package ingest

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptySheet     = errors.New("表格是空的")
	ErrUnreadableFile = errors.New("无法读取文件")
	ErrNoValidRows    = errors.New("文件中没有有效的数据，请检查格式后重试")
	ErrDateParse      = errors.New("无法解析日期")
)

// MissingColumnsError 表示表头中找不到必需的列，此时整个导入被中止
type MissingColumnsError struct {
	Columns []string // 缺少的逻辑列，例如 Date、Name/Person、Test
	Found   []string // 表头中实际存在的列
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("缺少必需的列: %s（找到的列: %s），请确保文件包含 Date、Name/Person 和 Test 列",
		strings.Join(e.Columns, ", "), strings.Join(e.Found, ", "))
}

// RowError 是单行的校验错误，不会中止导入
type RowError struct {
	Row     int    `json:"row"` // 从 1 开始的源文件行号，表头为第 1 行
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("第 %d 行: %s", e.Row, e.Message)
}

func (e RowError) Unwrap() error {
	return e.Err
}
