// data_handler.go
package email

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"

	"CustomerAnalytics/src/datasource/file"

	"github.com/go-gota/gota/dataframe"
)

// DataFrameWrapper 保存最近一次收到的客户导出, 供定时任务读取
type DataFrameWrapper struct {
	df          dataframe.DataFrame // 存储DataFrame数据
	fingerprint string              // 导出内容的md5
	source      string
	mu          sync.RWMutex // 读写锁保证线程安全
}

// GetDF 获取当前DataFrame(线程安全)
func (d *DataFrameWrapper) GetDF() dataframe.DataFrame {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.df
}

// SetDF 替换当前DataFrame(线程安全)
func (d *DataFrameWrapper) SetDF(df dataframe.DataFrame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.df = df
}

// Source 当前数据来自哪个附件
func (d *DataFrameWrapper) Source() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.source
}

// Fingerprint 内容的md5
func Fingerprint(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}

// LoadAttachment 解析导出附件; 内容与上次相同时不重新解析, changed 为 false
func (d *DataFrameWrapper) LoadAttachment(a *Attachment, opts file.Options) (changed bool, err error) {
	if a == nil {
		return false, fmt.Errorf("没有附件")
	}
	fp := Fingerprint(a.Content)

	d.mu.RLock()
	same := fp == d.fingerprint
	d.mu.RUnlock()
	if same {
		return false, nil
	}

	df, err := file.ReadBytes(a.Content, a.Filename, opts)
	if err != nil {
		return false, fmt.Errorf("解析附件 %s 失败: %w", a.Filename, err)
	}

	d.mu.Lock()
	d.df = df
	d.fingerprint = fp
	d.source = a.Filename
	d.mu.Unlock()
	return true, nil
}
