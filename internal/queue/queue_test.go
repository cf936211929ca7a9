package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bobarin/director/internal/models"
	"github.com/google/uuid"
)

// Needs a disposable Redis: TEST_REDIS_URL=redis://localhost:6379/15
func openTestQueue(t *testing.T) *Queue {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	q, err := New(url)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

func TestDequeueTimesOutEmpty(t *testing.T) {
	q := openTestQueue(t)
	name := "queue:test:" + uuid.NewString()

	job, err := q.Dequeue(context.Background(), time.Second, name)
	if err != nil || job != nil {
		t.Fatalf("Dequeue = %v, %v; want nil, nil", job, err)
	}
}

func TestDispatchThumbnailRoundTrip(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()
	q.client.Del(ctx, QueueGenerateThumbnail)

	id := uuid.New()
	req := models.ThumbnailRequest{Prompt: "wreck", Text: "NO BRAKES", Model: "m", AspectRatio: "16:9"}
	if err := q.DispatchThumbnail(ctx, id, req); err != nil {
		t.Fatalf("DispatchThumbnail failed: %v", err)
	}

	if n, err := q.GetQueueLength(ctx, QueueGenerateThumbnail); err != nil || n != 1 {
		t.Fatalf("queue length = %d, %v", n, err)
	}

	job, err := q.Dequeue(ctx, time.Second, Queues...)
	if err != nil || job == nil {
		t.Fatalf("Dequeue = %v, %v", job, err)
	}
	if job.Type != JobTypeGenerateThumbnail || job.ProductionID != id {
		t.Errorf("job = %+v", job)
	}
	if job.Thumbnail == nil || *job.Thumbnail != req {
		t.Errorf("thumbnail request = %+v", job.Thumbnail)
	}
	if job.CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped")
	}
}
