package vectorstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/aihub/ragpdf-go/internal/config"
)

// Point 向量索引中的一条记录
type Point struct {
	ID         string
	Vector     []float32
	Text       string
	Source     string // 来源文件名
	ChunkIndex int
}

// SearchMatch 相似度检索命中
type SearchMatch struct {
	ID         string
	Score      float64
	Text       string
	Source     string
	ChunkIndex int
	Metadata   map[string]interface{}
}

// VectorStore 向量存储接口
type VectorStore interface {
	EnsureCollection(ctx context.Context) error
	// ExistsForSource 判断某个来源文件是否已入库
	ExistsForSource(ctx context.Context, source string) (bool, error)
	Upsert(ctx context.Context, points []Point) error
	DeleteBySource(ctx context.Context, source string) error
	Search(ctx context.Context, vector []float32, limit int) ([]SearchMatch, error)
	Ready() bool
}

// PointID 由来源文件名和分块序号生成确定性的点ID
//
// 同一文件重复处理会产生相同的ID，向量库里的旧记录被原位覆盖。
// 渲染成UUID格式以满足Qdrant对点ID的要求。
func PointID(source string, index int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%d", source, index)))
	h := hex.EncodeToString(sum[:])
	return fmt.Sprintf("%s-%s-%s-%s-%s", h[0:8], h[8:12], h[12:16], h[16:20], h[20:32])
}

// NewVectorStore 根据配置创建向量存储
func NewVectorStore(cfg config.VectorStoreConfig) (VectorStore, error) {
	switch cfg.Provider {
	case "", "qdrant":
		return NewQdrantVectorStore(QdrantOptions{
			Endpoint:   cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			VectorSize: cfg.Qdrant.VectorSize,
			Distance:   cfg.Qdrant.Distance,
		})
	case "milvus":
		return NewMilvusVectorStore(MilvusOptions{
			Address:    cfg.Milvus.Address,
			Username:   cfg.Milvus.Username,
			Password:   cfg.Milvus.Password,
			Collection: cfg.Milvus.Collection,
			Database:   cfg.Milvus.Database,
			UseTLS:     cfg.Milvus.TLS,
			VectorSize: cfg.Milvus.VectorSize,
			Distance:   cfg.Milvus.Distance,
		})
	case "memory":
		return NewMemoryVectorStore(), nil
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", cfg.Provider)
	}
}
