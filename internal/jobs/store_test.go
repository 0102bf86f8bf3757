package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(rdb, time.Hour), mr
}

func TestStore_CreateAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "job-1", "report.pdf"))

	job, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "job-1", job.JobID)
	assert.Equal(t, StatusQueued, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Equal(t, "report.pdf", job.Filename)
	assert.False(t, job.UpdatedAt.IsZero())
}

func TestStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	job, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestStore_UpdateProgress(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "job-2", "a.pdf"))
	require.NoError(t, store.Update(ctx, "job-2", StatusProcessing, 40, "Extracting text"))

	job, err := store.Get(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, job.Status)
	assert.Equal(t, 40, job.Progress)
	assert.Equal(t, "Extracting text", job.Message)
}

func TestStore_Complete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "job-3", "a.pdf"))
	result := map[string]interface{}{"chunks_indexed": 12}
	require.NoError(t, store.Complete(ctx, "job-3", result))

	job, err := store.Get(ctx, "job-3")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.EqualValues(t, 12, job.Result["chunks_indexed"])
}

func TestStore_Fail(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "job-4", "a.pdf"))
	require.NoError(t, store.Fail(ctx, "job-4", "PDF is password-protected"))

	job, err := store.Get(ctx, "job-4")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "PDF is password-protected", job.Error)
}

func TestStore_TTLApplied(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "job-5", "a.pdf"))
	ttl := mr.TTL("job:job-5")
	assert.Equal(t, time.Hour, ttl)

	// 过期后查询视为不存在
	mr.FastForward(2 * time.Hour)
	job, err := store.Get(ctx, "job-5")
	require.NoError(t, err)
	assert.Nil(t, job)
}
