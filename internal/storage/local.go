package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore 本地磁盘存储
type LocalStore struct {
	basePath string
}

// NewLocalStore 创建本地磁盘存储，目录不存在时自动创建
func NewLocalStore(basePath string) (*LocalStore, error) {
	if basePath == "" {
		basePath = "./uploads"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

// Save 保存文件到本地目录
func (s *LocalStore) Save(ctx context.Context, filename string, r io.Reader, size int64) (string, error) {
	// 只保留文件名部分，避免路径穿越
	name := filepath.Base(filename)
	dst := filepath.Join(s.basePath, name)

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return dst, nil
}

// Fetch 读取本地文件
func (s *LocalStore) Fetch(ctx context.Context, path string) (FileSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return NewPathSource(path), nil
}

// Remove 删除本地文件
func (s *LocalStore) Remove(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
