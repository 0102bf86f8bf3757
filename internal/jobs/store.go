package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobStatus 任务状态
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job 异步处理任务的状态快照
type Job struct {
	JobID     string                 `json:"job_id"`
	Status    JobStatus              `json:"status"`
	Progress  int                    `json:"progress"`
	Message   string                 `json:"message"`
	Filename  string                 `json:"filename,omitempty"`
	Result    map[string]interface{} `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Store 基于Redis的任务状态存储
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore 创建任务状态存储，ttl为任务记录保留时长
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func jobKey(jobID string) string {
	return "job:" + jobID
}

// Create 登记新任务，初始状态为queued
func (s *Store) Create(ctx context.Context, jobID, filename string) error {
	job := &Job{
		JobID:    jobID,
		Status:   StatusQueued,
		Progress: 0,
		Message:  "Job queued",
		Filename: filename,
	}
	return s.save(ctx, job)
}

// Update 更新任务进度，progress取值0-100
func (s *Store) Update(ctx context.Context, jobID string, status JobStatus, progress int, message string) error {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		job = &Job{JobID: jobID}
	}
	job.Status = status
	job.Progress = progress
	job.Message = message
	return s.save(ctx, job)
}

// Complete 标记任务完成并附带处理结果
func (s *Store) Complete(ctx context.Context, jobID string, result map[string]interface{}) error {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		job = &Job{JobID: jobID}
	}
	job.Status = StatusCompleted
	job.Progress = 100
	job.Message = "Processing completed"
	job.Result = result
	return s.save(ctx, job)
}

// Fail 标记任务失败并记录错误信息
func (s *Store) Fail(ctx context.Context, jobID string, errMsg string) error {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		job = &Job{JobID: jobID}
	}
	job.Status = StatusFailed
	job.Message = "Processing failed"
	job.Error = errMsg
	return s.save(ctx, job)
}

// Get 查询任务状态，任务不存在时返回nil
func (s *Store) Get(ctx context.Context, jobID string) (*Job, error) {
	data, err := s.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read job status: %w", err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job status: %w", err)
	}
	return &job, nil
}

func (s *Store) save(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job status: %w", err)
	}
	if err := s.rdb.Set(ctx, jobKey(job.JobID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write job status: %w", err)
	}
	return nil
}
