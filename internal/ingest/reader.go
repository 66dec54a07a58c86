package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// Table 是第一个工作表的内容，Rows 不包含表头。
// Rows 是单元格显示的文本；Raw 只有 xlsx 才有，是与 Rows 按行对齐的未格式化值。
type Table struct {
	Header []string
	Rows   [][]string
	Raw    [][]string
}

type format int

const (
	formatCSV format = iota
	formatTSV
	formatXLSX
	formatXLS
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

func detectFormat(data []byte, filename string) format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xltx":
		return formatXLSX
	case ".xls":
		return formatXLS
	case ".tsv":
		return formatTSV
	case ".csv", ".txt":
		return formatCSV
	}

	// 扩展名未知时根据文件头判断
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return formatXLSX
	case bytes.HasPrefix(data, oleMagic):
		return formatXLS
	default:
		return formatCSV
	}
}

// ReadTable 读取上传文件的第一个工作表（或分隔文本），第一行作为表头
func ReadTable(data []byte, filename string) (*Table, error) {
	var (
		rows [][]string
		raw  [][]string
		err  error
	)

	switch detectFormat(data, filename) {
	case formatXLSX:
		rows, raw, err = readXLSX(data)
	case formatXLS:
		rows, err = readXLS(data)
	case formatTSV:
		rows, err = readDelimited(data, '\t')
	default:
		rows, err = readDelimited(data, ',')
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}

	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}

	header := make([]string, len(rows[0]))
	blank := true
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
		if header[i] != "" {
			blank = false
		}
	}
	if blank {
		return nil, ErrEmptySheet
	}

	table := &Table{Header: header, Rows: rows[1:]}
	if len(raw) > 0 {
		table.Raw = raw[1:]
	}
	return table, nil
}

// readXLSX 返回显示文本和原始值两份数据，原始值里的日期单元格是序列号
func readXLSX(data []byte) ([][]string, [][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = file.Close() }()

	sheetName := file.GetSheetName(0)
	if sheetName == "" {
		return nil, nil, ErrEmptySheet
	}

	rows, err := file.GetRows(sheetName)
	if err != nil {
		return nil, nil, err
	}
	raw, err := file.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, err
	}

	return rows, raw, nil
}

func readXLS(data []byte) ([][]string, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if workbook.NumSheets() == 0 {
		return nil, ErrEmptySheet
	}

	sheet := workbook.GetSheet(0)
	if sheet == nil {
		return nil, ErrEmptySheet
	}

	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}

	return rows, nil
}

func readDelimited(data []byte, comma rune) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	return reader.ReadAll()
}
