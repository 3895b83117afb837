package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipforge/pkg/models"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewWithClient(client, "jobs")
}

func TestPushPopFIFO(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	jobs := []*models.Job{
		{Type: models.JobIngest, VideoID: "v1"},
		{Type: models.JobTranscribe, VideoID: "v2"},
		{Type: models.JobAnalyze, VideoID: "v3"},
	}
	for _, j := range jobs {
		require.NoError(t, q.Push(ctx, j))
	}

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), depth)

	for _, want := range jobs {
		got, err := q.Pop(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want.Type, got.Type, "jobs should come back in push order")
		assert.Equal(t, want.VideoID, got.VideoID)
	}
}

func TestPopTimeoutReturnsNil(t *testing.T) {
	q := newTestQueue(t)

	job, err := q.Pop(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, job, "empty queue should time out with no job and no error")
}

func TestPushCarriesDescriptorFields(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	in := &models.Job{
		Type:        models.JobRender,
		VideoID:     "vid",
		ClipID:      "clip",
		SegmentID:   "seg",
		Start:       12.5,
		End:         42.5,
		AspectRatio: models.AspectVertical,
		Keywords:    []string{"go", "redis"},
	}
	require.NoError(t, q.Push(ctx, in))

	out, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in, out)
}
