// Package ingest 把上传的表格解析为班表条目。
//
// 表头通过别名匹配确定各列，不要求固定的列顺序。缺少必需列时整个导入失败；
// 单行的问题只记录为行错误，导入继续。没有任何有效行时返回 ErrNoValidRows，
// 调用方只有在没有错误返回时才应写入存储。
package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/domain"
)

const DefaultMaxReportedErrors = 5

var (
	validate   = validator.New(validator.WithRequiredStructEnabled())
	translator ut.Translator
)

func init() {
	zh := zh.New()
	uni := ut.New(zh, zh)
	translator, _ = uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}
}

// validationMessage 把校验错误翻译成中文，只取第一个字段的错误
func validationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return "记录校验失败"
	}
	return "记录校验失败: " + validationErrors[0].Translate(translator)
}

type Options struct {
	// 超过这个数量的行错误只计数，不再逐条列出
	MaxReportedErrors int
}

type Result struct {
	Entries       []domain.ScheduleEntry `json:"-"`
	Errors        []RowError             `json:"errors"`
	OmittedErrors int                    `json:"omittedErrors"`
}

func (r *Result) ErrorCount() int {
	return len(r.Errors) + r.OmittedErrors
}

// Summary 返回可以直接展示给用户的行错误摘要，没有错误时为空字符串
func (r *Result) Summary() string {
	if r.ErrorCount() == 0 {
		return ""
	}

	lines := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		lines = append(lines, e.Error())
	}

	summary := "导入完成，但存在以下警告:\n\n" + strings.Join(lines, "\n")
	if r.OmittedErrors > 0 {
		summary += fmt.Sprintf("\n\n...以及另外 %d 个错误", r.OmittedErrors)
	}
	return summary
}

func (r *Result) addError(e RowError, limit int) {
	if len(r.Errors) < limit {
		r.Errors = append(r.Errors, e)
		return
	}
	r.OmittedErrors++
}

// Ingest 解析文件的第一个工作表并返回校验后的班表条目
func Ingest(data []byte, filename string, opts Options) (*Result, error) {
	table, err := ReadTable(data, filename)
	if err != nil {
		return nil, err
	}
	return FromTable(table, opts)
}

func FromTable(table *Table, opts Options) (*Result, error) {
	limit := opts.MaxReportedErrors
	if limit <= 0 {
		limit = DefaultMaxReportedErrors
	}

	cols, err := ResolveColumns(table.Header)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Entries: make([]domain.ScheduleEntry, 0, len(table.Rows)),
		Errors:  make([]RowError, 0),
	}

	for i, row := range table.Rows {
		// 表头是第 1 行，所以第一行数据是第 2 行
		rowNum := i + 2

		var raw []string
		if i < len(table.Raw) {
			raw = table.Raw[i]
		}

		entry, ok, rowErr := buildEntry(row, raw, cols, rowNum)
		if rowErr != nil {
			result.addError(*rowErr, limit)
			continue
		}
		if !ok {
			continue
		}

		entry.ID = strconv.Itoa(len(result.Entries))
		result.Entries = append(result.Entries, entry)
	}

	if len(result.Entries) == 0 {
		return result, ErrNoValidRows
	}

	return result, nil
}

// buildEntry 返回 ok=false 且没有错误时表示这一行是空行，应直接跳过。
// raw 不为空时，日期列如果是数字就用原始的序列号，其他列一律使用显示文本。
func buildEntry(row, raw []string, cols Columns, rowNum int) (domain.ScheduleEntry, bool, *RowError) {
	person := cols.value(row, FieldPerson)
	test := cols.value(row, FieldTest)
	rawDate := cols.value(row, FieldDate)
	if serial := cols.value(raw, FieldDate); serial != "" {
		if _, err := strconv.ParseFloat(serial, 64); err == nil {
			rawDate = serial
		}
	}

	if person == "" && test == "" && rawDate == "" {
		return domain.ScheduleEntry{}, false, nil
	}

	switch {
	case person == "":
		return domain.ScheduleEntry{}, false, &RowError{Row: rowNum, Message: "缺少人员姓名"}
	case test == "":
		return domain.ScheduleEntry{}, false, &RowError{Row: rowNum, Message: "缺少测试类型"}
	case rawDate == "":
		return domain.ScheduleEntry{}, false, &RowError{Row: rowNum, Message: "缺少日期"}
	}

	date, err := CoerceDate(rawDate)
	if err != nil {
		return domain.ScheduleEntry{}, false, &RowError{Row: rowNum, Message: fmt.Sprintf("日期格式无效 %q", rawDate), Err: err}
	}

	entry := domain.ScheduleEntry{
		Person:   person,
		Test:     test,
		Date:     date,
		Time:     cols.optional(row, FieldTime),
		Location: cols.optional(row, FieldLocation),
		ZipCode:  cols.optional(row, FieldZipCode),
		TestID:   cols.optional(row, FieldTestID),
		MEP:      cols.optional(row, FieldMEP),
	}

	if err := validate.Struct(entry); err != nil {
		return domain.ScheduleEntry{}, false, &RowError{Row: rowNum, Message: validationMessage(err), Err: err}
	}

	return entry, true, nil
}
