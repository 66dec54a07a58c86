package ingest

import "strings"

type Field int

const (
	FieldDate Field = iota
	FieldPerson
	FieldTest
	FieldTime
	FieldLocation
	FieldZipCode
	FieldTestID
	FieldMEP

	fieldCount
)

type fieldSpec struct {
	label    string // 缺列时报告的名称
	required bool
	aliases  []string // 按优先级排列，先匹配到的别名胜出
}

var fieldSpecs = [fieldCount]fieldSpec{
	FieldDate:     {label: "Date", required: true, aliases: []string{"Date", "Date/Time", "DateTime", "Test Date"}},
	FieldPerson:   {label: "Name/Person", required: true, aliases: []string{"Name", "Person", "Employee", "Technician", "Tech"}},
	FieldTest:     {label: "Test", required: true, aliases: []string{"Test", "Test Type", "TestType", "Service"}},
	FieldTime:     {label: "Time", aliases: []string{"Time", "Start Time", "StartTime"}},
	FieldLocation: {label: "Location", aliases: []string{"Location", "Site", "Address"}},
	FieldZipCode:  {label: "Zip Code", aliases: []string{"Zip Code", "ZipCode", "Zip", "Postal Code"}},
	FieldTestID:   {label: "Test ID", aliases: []string{"Test ID", "TestID", "ID", "Job ID", "JobID"}},
	FieldMEP:      {label: "MEP Description", aliases: []string{"MEP Description", "MEP", "Description", "Notes"}},
}

// Columns 记录每个逻辑字段在表头中的下标，-1 表示不存在
type Columns [fieldCount]int

func normalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

// ResolveColumns 按别名顺序（不区分大小写）在表头中查找各字段，
// 同一别名出现多次时取最左边的列
func ResolveColumns(header []string) (Columns, error) {
	var cols Columns
	missing := []string{}

	for f := Field(0); f < fieldCount; f++ {
		cols[f] = findColumn(header, fieldSpecs[f].aliases)
		if cols[f] == -1 && fieldSpecs[f].required {
			missing = append(missing, fieldSpecs[f].label)
		}
	}

	if len(missing) > 0 {
		found := make([]string, 0, len(header))
		for _, h := range header {
			if strings.TrimSpace(h) != "" {
				found = append(found, strings.TrimSpace(h))
			}
		}
		return cols, &MissingColumnsError{Columns: missing, Found: found}
	}

	return cols, nil
}

func findColumn(header []string, aliases []string) int {
	for _, alias := range aliases {
		want := normalizeHeader(alias)
		for i, h := range header {
			if normalizeHeader(h) == want {
				return i
			}
		}
	}
	return -1
}

func (c Columns) value(row []string, f Field) string {
	idx := c[f]
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (c Columns) optional(row []string, f Field) *string {
	v := c.value(row, f)
	if v == "" {
		return nil
	}
	return &v
}
