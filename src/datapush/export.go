package datapush

import (
	"fmt"
	"os"
	"path/filepath"

	"CustomerAnalytics/src/processor"
)

// WriteTargetList 把目标客户写成单列 master_id 的csv
// 先写临时文件再改名, 读取方不会看到写了一半的文件
func WriteTargetList(dir string, list processor.TargetList) (string, error) {
	if list.OutputFile == "" {
		return "", fmt.Errorf("活动 %s 没有配置输出文件", list.Campaign)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}
	path := filepath.Join(dir, list.OutputFile)

	tmp, err := os.CreateTemp(dir, "."+list.OutputFile+".*")
	if err != nil {
		return "", fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer os.Remove(tmp.Name())

	// CreateTemp 建的是 0600, 名单要给其他账号读取
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return "", fmt.Errorf("设置 %s 权限失败: %w", path, err)
	}
	if err := list.DataFrame().WriteCSV(tmp); err != nil {
		tmp.Close()
		return "", fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("保存 %s 失败: %w", path, err)
	}
	return path, nil
}

// WriteTargets 写出所有活动的名单, 返回文件路径
func WriteTargets(dir string, lists []processor.TargetList) ([]string, error) {
	paths := make([]string, 0, len(lists))
	for _, list := range lists {
		path, err := WriteTargetList(dir, list)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
