package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRepository 文档登记仓库接口
type DocumentRepository interface {
	GetDB() *gorm.DB
	Upsert(ctx context.Context, doc *Document) error
	GetByFilename(ctx context.Context, filename string) (*Document, error)
	List(ctx context.Context, page, limit int) ([]Document, int, error)
	UpdateStatus(ctx context.Context, filename string, status string, chunkCount int) error
	Delete(ctx context.Context, filename string) error
}

// documentRepository 文档登记仓库实现
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建文档登记仓库
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// GetDB 获取数据库连接
func (r *documentRepository) GetDB() *gorm.DB {
	return r.db
}

// Upsert 按文件名登记文档，已存在时更新元数据
func (r *documentRepository) Upsert(ctx context.Context, doc *Document) error {
	now := time.Now()
	if doc.CreateTime.IsZero() {
		doc.CreateTime = now
	}
	doc.UpdateTime = now

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "filename"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"size_bytes", "page_count", "chunk_count", "title", "author",
			"creation_date", "encrypted", "status", "update_time",
		}),
	}).Create(doc).Error
}

// GetByFilename 按文件名查询文档
func (r *documentRepository) GetByFilename(ctx context.Context, filename string) (*Document, error) {
	var doc Document
	err := r.db.WithContext(ctx).Where("filename = ?", filename).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

// List 分页查询已登记文档
func (r *documentRepository) List(ctx context.Context, page, limit int) ([]Document, int, error) {
	var docs []Document
	var total int64

	query := r.db.WithContext(ctx).Model(&Document{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	offset := (page - 1) * limit
	if err := query.Order("create_time DESC").Offset(offset).Limit(limit).Find(&docs).Error; err != nil {
		return nil, 0, err
	}

	return docs, int(total), nil
}

// UpdateStatus 更新文档处理状态与分块数
func (r *documentRepository) UpdateStatus(ctx context.Context, filename string, status string, chunkCount int) error {
	updates := map[string]interface{}{
		"status":      status,
		"update_time": time.Now(),
	}
	if chunkCount >= 0 {
		updates["chunk_count"] = chunkCount
	}
	return r.db.WithContext(ctx).Model(&Document{}).
		Where("filename = ?", filename).
		Updates(updates).Error
}

// Delete 删除文档登记
func (r *documentRepository) Delete(ctx context.Context, filename string) error {
	return r.db.WithContext(ctx).Where("filename = ?", filename).Delete(&Document{}).Error
}
