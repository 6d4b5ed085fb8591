// disk_usage.go — оценка свободного места в каталоге данных.
// Работает только на Unix-подобных системах (statfs).
package handlers

import (
	"fmt"
	"syscall"
)

// getDiskUsage возвращает ёмкость файловой системы, на которой лежит path:
// всего, занято и доступно (в байтах). Используется в readiness-пробе
// как информационный показатель.
func getDiskUsage(path string) (total, used, available int64, err error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, 0, 0, fmt.Errorf("ошибка statfs %s: %w", path, err)
	}

	// Bavail — блоки, доступные непривилегированному процессу
	total = int64(stat.Blocks) * int64(stat.Bsize)
	available = int64(stat.Bavail) * int64(stat.Bsize)
	used = total - available

	return total, used, available, nil
}
