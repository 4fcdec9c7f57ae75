// email_handler.go
package email

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"CustomerAnalytics/src/storage"
)

// ====================== 邮件处理器实现 ======================

// ExportAttachmentHandler 把客户导出附件保存到数据目录
type ExportAttachmentHandler struct {
	TargetSubject string          // 目标邮件主题关键词
	DataDir       string          // 附件保存目录
	processedUIDs map[uint32]bool // 已处理邮件UID记录
	lastSaved     string
	mu            sync.RWMutex // 保护processedUIDs的读写锁
	logger        *storage.Logger
}

func NewExportAttachmentHandler(subject, dataDir string, logger *storage.Logger) *ExportAttachmentHandler {
	return &ExportAttachmentHandler{
		TargetSubject: subject,
		DataDir:       dataDir,
		processedUIDs: make(map[uint32]bool),
		logger:        logger,
	}
}

// IsProcessed 检查邮件是否已处理过（线程安全）
func (h *ExportAttachmentHandler) IsProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

func (h *ExportAttachmentHandler) markAsProcessed(uid uint32, path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = true
	h.lastSaved = path
}

// LastSaved 最近一次保存的导出文件
func (h *ExportAttachmentHandler) LastSaved() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastSaved
}

// Handle 处理单个邮件
func (h *ExportAttachmentHandler) Handle(email *Email) error {
	_, err := h.Save(email)
	return err
}

// Save 保存邮件中的第一个导出附件, 返回保存路径
// 已处理过或主题不匹配的邮件返回空路径
func (h *ExportAttachmentHandler) Save(email *Email) (string, error) {
	if h.IsProcessed(email.UID) {
		return "", nil
	}
	if !strings.Contains(email.Subject, h.TargetSubject) {
		h.logger.Debug(fmt.Sprintf("跳过主题不匹配的邮件: %s", email.Subject))
		return "", nil
	}

	attachment := email.ExportAttachment()
	if attachment == nil {
		h.logger.Warning(fmt.Sprintf("邮件 %q 没有客户导出附件", email.Subject))
		return "", nil
	}

	h.logger.Info(fmt.Sprintf("处理邮件: %s, 发件人: %s, 日期: %s",
		email.Subject, email.From, email.Date.Format("2006-01-02 15:04:05")))

	if err := os.MkdirAll(h.DataDir, 0755); err != nil {
		return "", fmt.Errorf("创建目录失败: %v", err)
	}

	// 附件名只取文件名部分, 防止写到数据目录之外
	filePath := filepath.Join(h.DataDir, filepath.Base(filepath.Clean("/"+attachment.Filename)))
	if err := os.WriteFile(filePath, attachment.Content, 0644); err != nil {
		return "", fmt.Errorf("保存附件失败: %v", err)
	}
	h.logger.Info(fmt.Sprintf("附件已保存到: %s", filePath))

	h.markAsProcessed(email.UID, filePath)
	return filePath, nil
}
