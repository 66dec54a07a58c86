package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/dateutil"
)

const (
	excelEpochOffset = 25569   // 1970-01-01 对应的表格日期序列号（序列号 0 为 1899-12-30）
	secondsPerDay    = 86400   // 一天的秒数
	maxExcelSerial   = 2958466 // 9999-12-31 之后的序列号不再视为日期
)

// SerialToDate 把表格日期序列号转换为 YYYY-MM-DD（UTC），小数部分的时间会被舍去
func SerialToDate(serial float64) string {
	secs := math.Round((serial - excelEpochOffset) * secondsPerDay)
	return time.Unix(int64(secs), 0).UTC().Format(dateutil.ISOLayout)
}

// CoerceDate 把单元格中的日期转换为 YYYY-MM-DD。
// 在序列号范围内的数字按表格序列号处理，其余文本交给宽松的日期解析器。
func CoerceDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrDateParse
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < maxExcelSerial {
		return SerialToDate(serial), nil
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return "", fmt.Errorf("%w %q", ErrDateParse, s)
	}

	return t.Format(dateutil.ISOLayout), nil
}
