package repository

import (
	"time"
)

// Document 已入库文档登记表
type Document struct {
	DocumentID   uint      `gorm:"primaryKey;column:document_id" json:"document_id"`
	Filename     string    `gorm:"size:500;not null;uniqueIndex" json:"filename"`
	SizeBytes    int64     `gorm:"column:size_bytes;default:0" json:"size_bytes"`
	PageCount    int       `gorm:"column:page_count;default:0" json:"page_count"`
	ChunkCount   int       `gorm:"column:chunk_count;default:0" json:"chunk_count"`
	Title        string    `gorm:"size:500" json:"title"`
	Author       string    `gorm:"size:500" json:"author"`
	CreationDate string    `gorm:"size:100" json:"creation_date"`
	Encrypted    bool      `gorm:"default:false" json:"encrypted"`
	Status       string    `gorm:"size:20;default:processing" json:"status"` // processing | completed | failed
	CreateTime   time.Time `gorm:"column:create_time" json:"create_time"`
	UpdateTime   time.Time `gorm:"column:update_time" json:"update_time"`
}

func (Document) TableName() string {
	return "documents"
}
