package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aihub/ragpdf-go/internal/logger"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address    string
	Username   string
	Password   string
	Collection string
	Database   string
	UseTLS     bool
	VectorSize int
	Distance   string
	Timeout    time.Duration
}

type milvusVectorStore struct {
	milvusClient client.Client
	collection   string
	vectorSize   int
	distance     string
}

// NewMilvusVectorStore 创建Milvus向量存储
func NewMilvusVectorStore(opts MilvusOptions) (VectorStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.Collection == "" {
		opts.Collection = "pdf_chunks"
	}
	if opts.VectorSize == 0 {
		opts.VectorSize = 1536
	}
	if opts.Database == "" {
		opts.Database = "default"
	}

	milvusClient, err := client.NewClient(
		context.Background(),
		client.Config{
			Address:       opts.Address,
			DBName:        opts.Database,
			Username:      opts.Username,
			Password:      opts.Password,
			EnableTLSAuth: opts.UseTLS,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	return &milvusVectorStore{
		milvusClient: milvusClient,
		collection:   opts.Collection,
		vectorSize:   opts.VectorSize,
		distance:     formatMilvusDistance(opts.Distance),
	}, nil
}

func formatMilvusDistance(value string) string {
	switch strings.ToUpper(value) {
	case "DOT", "IP", "INNER_PRODUCT":
		return "IP"
	case "L2", "EUCLIDEAN":
		return "L2"
	default:
		return "COSINE"
	}
}

func (s *milvusVectorStore) metricType() entity.MetricType {
	return entity.MetricType(s.distance)
}

// EnsureCollection 确保集合和索引存在
func (s *milvusVectorStore) EnsureCollection(ctx context.Context) error {
	hasCollection, err := s.milvusClient.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if hasCollection {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: s.collection,
		Description:    "PDF document chunks",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "source",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "chunk_id",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", s.vectorSize),
				},
			},
		},
	}

	if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	var index entity.Index
	index, err = entity.NewIndexHNSW(s.metricType(), 8, 64)
	if err != nil {
		// HNSW不可用时退回IVF_FLAT
		index, err = entity.NewIndexIvfFlat(s.metricType(), 128)
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := s.milvusClient.CreateIndex(ctx, s.collection, "vector", index, false); err != nil {
		logger.Warn("创建Milvus索引失败", zap.String("collection", s.collection), zap.Error(err))
	}

	if err := s.milvusClient.LoadCollection(ctx, s.collection, false); err != nil {
		logger.Warn("加载Milvus集合失败", zap.String("collection", s.collection), zap.Error(err))
	}

	return nil
}

func sourceExpr(source string) string {
	escaped := strings.ReplaceAll(source, `"`, `\"`)
	return fmt.Sprintf(`source == "%s"`, escaped)
}

// ExistsForSource 判断来源文件是否已有记录
func (s *milvusVectorStore) ExistsForSource(ctx context.Context, source string) (bool, error) {
	if err := s.EnsureCollection(ctx); err != nil {
		return false, err
	}

	result, err := s.milvusClient.Query(ctx, s.collection, nil, sourceExpr(source), []string{"id"}, client.WithLimit(1))
	if err != nil {
		return false, fmt.Errorf("milvus query failed: %w", err)
	}

	for _, col := range result {
		if col.Name() == "id" && col.Len() > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Upsert 批量写入点，同ID记录被覆盖
func (s *milvusVectorStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	// 维度不一致说明嵌入模型与集合配置不匹配，静默修补会污染索引
	for _, p := range points {
		if len(p.Vector) == 0 {
			return fmt.Errorf("embedding is empty for point %s", p.ID)
		}
		if len(p.Vector) != s.vectorSize {
			return fmt.Errorf("vector size %d for point %s does not match collection dimension %d",
				len(p.Vector), p.ID, s.vectorSize)
		}
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return err
	}

	ids := make([]string, 0, len(points))
	sources := make([]string, 0, len(points))
	indexes := make([]int64, 0, len(points))
	contents := make([]string, 0, len(points))
	vectors := make([][]float32, 0, len(points))

	for _, p := range points {
		ids = append(ids, p.ID)
		sources = append(sources, p.Source)
		indexes = append(indexes, int64(p.ChunkIndex))
		contents = append(contents, p.Text)
		vectors = append(vectors, p.Vector)
	}

	_, err := s.milvusClient.Upsert(ctx, s.collection, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnInt64("chunk_id", indexes),
		entity.NewColumnVarChar("text", contents),
		entity.NewColumnFloatVector("vector", s.vectorSize, vectors),
	)
	if err != nil {
		return fmt.Errorf("milvus upsert failed: %w", err)
	}

	if err := s.milvusClient.Flush(ctx, s.collection, false); err != nil {
		logger.Warn("刷新Milvus集合失败", zap.String("collection", s.collection), zap.Error(err))
	}

	return nil
}

// DeleteBySource 删除某来源文件的全部记录
func (s *milvusVectorStore) DeleteBySource(ctx context.Context, source string) error {
	if err := s.EnsureCollection(ctx); err != nil {
		return err
	}

	if err := s.milvusClient.Delete(ctx, s.collection, "", sourceExpr(source)); err != nil {
		return fmt.Errorf("milvus delete failed: %w", err)
	}

	if err := s.milvusClient.Flush(ctx, s.collection, false); err != nil {
		logger.Warn("刷新Milvus集合失败", zap.String("collection", s.collection), zap.Error(err))
	}

	return nil
}

// Search 按向量相似度检索
func (s *milvusVectorStore) Search(ctx context.Context, vector []float32, limit int) ([]SearchMatch, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	sp, _ := entity.NewIndexHNSWSearchParam(64)
	queryVector := entity.FloatVector(vector)
	searchResults, err := s.milvusClient.Search(
		ctx,
		s.collection,
		nil,
		"",
		[]string{"source", "chunk_id", "text"},
		[]entity.Vector{queryVector},
		"vector",
		s.metricType(),
		limit,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}

	if len(searchResults) == 0 {
		return []SearchMatch{}, nil
	}
	result := searchResults[0]
	if result.Err != nil {
		return nil, fmt.Errorf("milvus search error: %w", result.Err)
	}
	if result.ResultCount == 0 {
		return []SearchMatch{}, nil
	}

	var ids []string
	if idCol, ok := result.IDs.(*entity.ColumnVarChar); ok {
		ids = idCol.Data()
	}

	var sources, contents []string
	var indexes []int64
	for _, field := range result.Fields {
		switch field.Name() {
		case "source":
			if col, ok := field.(*entity.ColumnVarChar); ok {
				sources = col.Data()
			}
		case "chunk_id":
			if col, ok := field.(*entity.ColumnInt64); ok {
				indexes = col.Data()
			}
		case "text":
			if col, ok := field.(*entity.ColumnVarChar); ok {
				contents = col.Data()
			}
		}
	}

	matches := make([]SearchMatch, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		match := SearchMatch{Metadata: make(map[string]interface{})}
		if i < len(ids) {
			match.ID = ids[i]
		}
		if i < len(sources) {
			match.Source = sources[i]
		}
		if i < len(indexes) {
			match.ChunkIndex = int(indexes[i])
		}
		if i < len(contents) {
			match.Text = contents[i]
		}
		if i < len(result.Scores) {
			match.Score = float64(result.Scores[i])
		}
		matches = append(matches, match)
	}

	return matches, nil
}

func (s *milvusVectorStore) Ready() bool {
	if s.milvusClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.milvusClient.ListCollections(ctx)
	return err == nil
}
