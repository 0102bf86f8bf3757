package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aihub/ragpdf-go/internal/config"
)

// Store 上传文件的持久化存储接口
type Store interface {
	// Save 保存文件并返回可重新打开的存储路径
	Save(ctx context.Context, filename string, r io.Reader, size int64) (string, error)
	// Fetch 读取已保存的文件，返回用于解析的来源
	Fetch(ctx context.Context, path string) (FileSource, error)
	// Remove 删除已保存的文件
	Remove(ctx context.Context, path string) error
}

// NewStore 根据配置创建文件存储
func NewStore(cfg config.ObjectStorageConfig) (Store, error) {
	switch cfg.Provider {
	case "", "local":
		return NewLocalStore(cfg.BasePath)
	case "minio", "s3":
		return NewMinIOStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}
}
