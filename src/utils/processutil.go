package utils

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

// DateLayout 统一输出的日期格式
const DateLayout = "2006-01-02"

var excelSerial = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// 支持的日期格式
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"01/02/2006",
	"01/02/2006 15:04:05",
	"1/2/2006",
	"1/2/06",
	"01-02-06",
}

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// RequireColumns 缺列时返回错误, 列出所有缺失的列名
func RequireColumns(df dataframe.DataFrame, names ...string) error {
	var missing []string
	for _, name := range names {
		if !HasColumn(df, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("缺少列: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ParseDate 解析日期字符串, 同时支持Excel序列号, 结果截断到天(UTC)
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("空日期")
	}
	if excelSerial.MatchString(s) {
		serial, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, err
		}
		return excelToTime(serial), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("无法识别的日期: %q", s)
}

// excel时间类型转time.Time类型
// Excel把1900年当作闰年, 60号(1900-02-29)之前的序列号需要少减一天
func excelToTime(serial float64) time.Time {
	days := int(math.Floor(serial))
	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	if days < 60 {
		base = base.AddDate(0, 0, 1)
	}
	return base.AddDate(0, 0, days)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween later - earlier 的整天数(向下取整)
func DaysBetween(later, earlier time.Time) int {
	return int(math.Floor(later.Sub(earlier).Hours() / 24))
}

// WriteSheet 把DataFrame写入excel工作表, 第一行为列名
func WriteSheet(f *excelize.File, sheetName string, df dataframe.DataFrame) error {
	if idx, _ := f.GetSheetIndex(sheetName); idx == -1 {
		if _, err := f.NewSheet(sheetName); err != nil {
			return fmt.Errorf("创建工作表 %s 失败: %w", sheetName, err)
		}
	}

	// 写入列名
	colNames := df.Names()
	header := make([]interface{}, len(colNames))
	for i, name := range colNames {
		header[i] = name
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}

	// 写入数据
	cols := make([][]interface{}, len(colNames))
	for i, name := range colNames {
		col := df.Col(name)
		values := make([]interface{}, col.Len())
		for j := 0; j < col.Len(); j++ {
			values[j] = col.Val(j)
		}
		cols[i] = values
	}
	for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
		row := make([]interface{}, len(colNames))
		for colIdx := range colNames {
			row[colIdx] = cols[colIdx][rowIdx]
		}
		cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
