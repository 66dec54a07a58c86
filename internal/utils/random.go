package utils

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/dateutil"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/domain"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "霞", "飞", "玲", "超",
	"华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌", "庆",
	"建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

// RomanizeName 把中文姓名转换成 "Wang Xiaoming" 的形式，姓和名之间用空格分隔
func RomanizeName(chineseName string) string {
	syllables := pinyin.LazyConvert(chineseName, nil)
	if len(syllables) == 0 {
		return chineseName
	}

	given := ""
	for _, s := range syllables[1:] {
		given += s
	}
	if given == "" {
		return capitalize(syllables[0])
	}
	return capitalize(syllables[0]) + " " + capitalize(given)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// GenerateRandomPeople 生成 n 个互不相同的罗马化姓名
func GenerateRandomPeople(n int) []string {
	seen := make(map[string]bool, n)
	people := make([]string, 0, n)
	for attempts := 0; len(people) < n && attempts < n*50; attempts++ {
		name := RomanizeName(GenerateRandomChineseName())
		if seen[name] {
			continue
		}
		seen[name] = true
		people = append(people, name)
	}
	return people
}

var testTypes = []string{
	"Density", "Proctor", "Concrete Cylinders", "Rebar Inspection", "Soil Compaction", "Asphalt Core",
}

var sites = []string{
	"North Campus", "East Gate Plaza", "Harbor Warehouse", "Riverside Lot 7", "Library Annex",
}

var mepDescriptions = []string{
	"Ductwork rough-in", "Fire sprinkler mains", "Electrical conduit", "Plumbing risers",
}

var startTimes = []string{"07:00", "08:30", "10:00", "13:00", "15:30"}

var digits = "0123456789"

func GenerateRandomID(letterLength int, digitLength int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	randomID := make([]byte, letterLength+digitLength)
	for i := range randomID {
		if i < letterLength {
			randomID[i] = letters[rand.Intn(len(letters))]
		} else {
			randomID[i] = digits[rand.Intn(len(digits))]
		}
	}
	return string(randomID)
}

func optional(probability float64, value string) *string {
	if rand.Float64() >= probability {
		return nil
	}
	return &value
}

// GenerateRandomEntries 在 anchor 所在的周以及之后的三周内随机生成 n 条班表记录
func GenerateRandomEntries(n int, people []string, anchor time.Time) []domain.ScheduleEntry {
	if len(people) == 0 {
		people = GenerateRandomPeople(5)
	}

	weekStart := dateutil.WeekStart(anchor)
	entries := make([]domain.ScheduleEntry, 0, n)
	for i := 0; i < n; i++ {
		date := dateutil.AddDays(weekStart, rand.Intn(28))
		entries = append(entries, domain.ScheduleEntry{
			ID:       fmt.Sprint(i),
			Person:   people[rand.Intn(len(people))],
			Test:     testTypes[rand.Intn(len(testTypes))],
			Date:     dateutil.ISODate(date),
			Time:     optional(0.8, startTimes[rand.Intn(len(startTimes))]),
			Location: optional(0.9, sites[rand.Intn(len(sites))]),
			ZipCode:  optional(0.5, fmt.Sprintf("%05d", 10000+rand.Intn(89999))),
			TestID:   optional(0.7, GenerateRandomID(2, 4)),
			MEP:      optional(0.3, mepDescriptions[rand.Intn(len(mepDescriptions))]),
		})
	}
	return entries
}
