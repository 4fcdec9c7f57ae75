// monitor.go
package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileMonitor 监听导出文件所在目录, 目标文件更新后触发处理
type FileMonitor struct {
	watchDir string
	target   string // 只关心这个文件名, 为空时目录下任意文件都触发
	debounce time.Duration
	watcher  *fsnotify.Watcher
	lastMod  time.Time
	mu       sync.Mutex
}

func NewFileMonitor(path string, debounce time.Duration) (*FileMonitor, error) {
	dir, target := path, ""
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		dir, target = filepath.Dir(path), filepath.Base(path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &FileMonitor{
		watchDir: dir,
		target:   target,
		debounce: debounce,
		watcher:  watcher,
	}, nil
}

// Watch 阻塞直到 ctx 取消或 watcher 出错
// 导出工具通常分多次写入, 同一文件在 debounce 时间内的事件合并为一次
func (m *FileMonitor) Watch(ctx context.Context, handler func(string)) error {
	defer m.watcher.Close()

	var timer *time.Timer
	fire := make(chan string, 1)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if m.target != "" && filepath.Base(event.Name) != m.target {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			name := event.Name
			timer = time.AfterFunc(m.debounce, func() {
				select {
				case fire <- name:
				default:
				}
			})
		case name := <-fire:
			if m.isNewer(name) {
				handler(name)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (m *FileMonitor) isNewer(name string) bool {
	info, err := os.Stat(name)
	if err != nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !info.ModTime().After(m.lastMod) {
		return false
	}
	m.lastMod = info.ModTime()
	return true
}
