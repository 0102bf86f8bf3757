package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileSource 待处理文件的抽象来源，解析器只依赖该接口
type FileSource interface {
	Filename() string
	Open() (io.ReadSeekCloser, error)
	Size() (int64, error)
}

// PathSource 本地磁盘文件来源
type PathSource struct {
	Path string
}

// NewPathSource 创建本地文件来源
func NewPathSource(path string) *PathSource {
	return &PathSource{Path: path}
}

func (s *PathSource) Filename() string {
	return filepath.Base(s.Path)
}

func (s *PathSource) Open() (io.ReadSeekCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", s.Path, err)
	}
	return f, nil
}

func (s *PathSource) Size() (int64, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// BufferSource 内存数据来源，用于对象存储下载后的处理
type BufferSource struct {
	Name string
	Data []byte
}

// NewBufferSource 创建内存来源
func NewBufferSource(name string, data []byte) *BufferSource {
	return &BufferSource{Name: name, Data: data}
}

func (s *BufferSource) Filename() string {
	return s.Name
}

func (s *BufferSource) Open() (io.ReadSeekCloser, error) {
	return nopCloser{bytes.NewReader(s.Data)}, nil
}

func (s *BufferSource) Size() (int64, error) {
	return int64(len(s.Data)), nil
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
