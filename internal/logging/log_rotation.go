package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type LogRotation struct {
	maxSize int64
	maxAge  time.Duration
}

func NewLogRotation(maxSize int64, maxAge time.Duration) *LogRotation {
	return &LogRotation{
		maxSize: maxSize,
		maxAge:  maxAge,
	}
}

// ShouldRotate reports whether the file at path is over the size or age limit.
// A zero limit disables that check.
func (lr *LogRotation) ShouldRotate(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	if lr.maxSize > 0 && info.Size() >= lr.maxSize {
		return true
	}

	if lr.maxAge <= 0 {
		return false
	}
	return time.Since(info.ModTime()) >= lr.maxAge
}

func (lr *LogRotation) Rotate(path string) (string, error) {
	timestamp := time.Now().Format("20060102-150405")
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]

	newPath := fmt.Sprintf("%s-%s%s", base, timestamp, ext)

	err := os.Rename(path, newPath)
	return newPath, err
}

// RotateIfNeeded is called once before the log file is opened.
func (lr *LogRotation) RotateIfNeeded(path string) (string, bool, error) {
	if path == "" || !lr.ShouldRotate(path) {
		return "", false, nil
	}
	newPath, err := lr.Rotate(path)
	if err != nil {
		return "", false, fmt.Errorf("rotate %s: %w", path, err)
	}
	return newPath, true, nil
}
