// reader.go
package file

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Options 读取导出文件的选项
type Options struct {
	SheetName string // xlsx 工作表, 为空时取第一个
	HeaderRow int    // xlsx 标题行(从0开始)
	Encoding  string // csv 编码
}

// ReadFile 按扩展名读取 .csv / .xlsx 导出文件, 所有列按字符串读入
func ReadFile(filePath string, opts Options) (dataframe.DataFrame, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("读取文件 %s 失败: %w", filePath, err)
	}
	return ReadBytes(data, filepath.Base(filePath), opts)
}

// ReadBytes 读取内存中的导出文件(例如邮件附件), name 用于判断格式
func ReadBytes(data []byte, name string, opts Options) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return ReadCSV(bytes.NewReader(data), opts.Encoding)
	case ".xlsx":
		return ReadXLSX(data, opts.SheetName, opts.HeaderRow)
	default:
		return dataframe.DataFrame{}, fmt.Errorf("不支持的文件格式: %s", name)
	}
}

// ReadCSV 读取csv, 先按配置的编码转成utf-8
func ReadCSV(r io.Reader, encodingName string) (dataframe.DataFrame, error) {
	enc, err := lookupEncoding(encodingName)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	df := dataframe.ReadCSV(
		transform.NewReader(r, enc.NewDecoder()),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{}),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("解析csv失败: %w", df.Err)
	}
	return df, nil
}

// lookupEncoding 支持导出常见的几种编码, utf-8 会去掉BOM
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8BOM, nil
	case "windows-1254", "cp1254":
		return charmap.Windows1254, nil
	case "iso-8859-9", "latin5":
		return charmap.ISO8859_9, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "gbk", "gb2312":
		return simplifiedchinese.GBK, nil
	default:
		return nil, fmt.Errorf("不支持的编码: %s", name)
	}
}

// ReadXLSX 使用tealeg/xlsx读取工作表并转换为DataFrame
func ReadXLSX(data []byte, sheetName string, headerRow int) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx open file false: %w", err)
	}
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表")
	}

	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		s, ok := xlFile.Sheet[sheetName]
		if !ok {
			return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 不存在", sheetName)
		}
		sheet = s
	}
	return convertSheetToDataFrame(sheet, headerRow)
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame
func convertSheetToDataFrame(sheet *xlsx.Sheet, headerRow int) (dataframe.DataFrame, error) {
	if len(sheet.Rows) <= headerRow {
		return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 没有标题行", sheet.Name)
	}

	var headers []string
	for _, cell := range sheet.Rows[headerRow].Cells {
		headers = append(headers, strings.TrimSpace(cell.String()))
	}
	// 去掉尾部的空标题列
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}
	if len(headers) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 标题行为空", sheet.Name)
	}

	columns := make([][]string, len(headers))
	for _, row := range sheet.Rows[headerRow+1:] {
		if row == nil || isBlankRow(row) {
			continue
		}
		for i := range headers {
			value := ""
			if i < len(row.Cells) {
				value = strings.TrimSpace(row.Cells[i].String())
			}
			columns[i] = append(columns[i], value)
		}
	}

	seriesList := make([]series.Series, len(headers))
	for i, colName := range headers {
		seriesList[i] = series.New(columns[i], series.String, colName)
	}

	df := dataframe.New(seriesList...)
	if df.Err != nil {
		return dataframe.DataFrame{}, df.Err
	}
	return df, nil
}

func isBlankRow(row *xlsx.Row) bool {
	for _, cell := range row.Cells {
		if strings.TrimSpace(cell.String()) != "" {
			return false
		}
	}
	return true
}

// SetupSignalHandler 收到 SIGINT/SIGTERM 时取消 ctx
func SetupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		fmt.Printf("\nReceived signal: %v, shutting down...\n", sig)
		cancel()
	}()
}
