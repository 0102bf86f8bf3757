package extract

import (
	"context"
	"time"

	"github.com/aihub/ragpdf-go/internal/storage"
	"github.com/unidoc/unipdf/v3/model"
)

// ReadMetadata 读取PDF元数据，字段缺失时留空，不影响主流程
func ReadMetadata(ctx context.Context, src storage.FileSource) (*Metadata, error) {
	meta := &Metadata{}

	if size, err := src.Size(); err == nil {
		meta.SizeBytes = size
	}

	f, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pdfReader, err := model.NewPdfReader(f)
	if err != nil {
		return nil, err
	}

	if encrypted, err := pdfReader.IsEncrypted(); err == nil && encrypted {
		meta.Encrypted = true
		if ok, err := pdfReader.Decrypt([]byte("")); err != nil || !ok {
			// 无法解密时只返回能拿到的信息
			return meta, nil
		}
	}

	if numPages, err := pdfReader.GetNumPages(); err == nil {
		meta.PageCount = numPages
	}

	info, err := pdfReader.GetPdfInfo()
	if err != nil || info == nil {
		return meta, nil
	}

	if info.Title != nil {
		meta.Title = info.Title.Decoded()
	}
	if info.Author != nil {
		meta.Author = info.Author.Decoded()
	}
	if info.CreationDate != nil {
		meta.CreationDate = info.CreationDate.ToGoTime().Format(time.RFC3339)
	}

	return meta, nil
}
