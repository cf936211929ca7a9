package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bobarin/director/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	QueueProduce           = "queue:produce"
	QueueGenerateSeo       = "queue:generate_seo"
	QueueGenerateThumbnail = "queue:generate_thumbnail"
)

const (
	JobTypeProduce           = "produce"
	JobTypeGenerateSeo       = "generate_seo"
	JobTypeGenerateThumbnail = "generate_thumbnail"
)

// Queues lists every queue in the order the worker polls them.
var Queues = []string{QueueProduce, QueueGenerateSeo, QueueGenerateThumbnail}

type Queue struct {
	client *redis.Client
}

type Job struct {
	ID           uuid.UUID                `json:"id"`
	Type         string                   `json:"type"`
	ProductionID uuid.UUID                `json:"production_id"`
	Thumbnail    *models.ThumbnailRequest `json:"thumbnail,omitempty"`
	CreatedAt    time.Time                `json:"created_at"`
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) Enqueue(ctx context.Context, queueName string, job *Job) error {
	job.CreatedAt = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return q.client.RPush(ctx, queueName, data).Err()
}

// Dequeue blocks up to timeout for a job from any of the named queues.
// It returns nil, nil when no job arrived.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration, queueNames ...string) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, queueNames...).Result()
	if err == redis.Nil {
		return nil, nil // No job available
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

func (q *Queue) GetQueueLength(ctx context.Context, queueName string) (int64, error) {
	return q.client.LLen(ctx, queueName).Result()
}

// DispatchProduction enqueues the batch loop of a started production.
func (q *Queue) DispatchProduction(ctx context.Context, productionID uuid.UUID) error {
	return q.Enqueue(ctx, QueueProduce, &Job{
		ID:           uuid.New(),
		Type:         JobTypeProduce,
		ProductionID: productionID,
	})
}

// DispatchSeo enqueues SEO generation for a production.
func (q *Queue) DispatchSeo(ctx context.Context, productionID uuid.UUID) error {
	return q.Enqueue(ctx, QueueGenerateSeo, &Job{
		ID:           uuid.New(),
		Type:         JobTypeGenerateSeo,
		ProductionID: productionID,
	})
}

// DispatchThumbnail enqueues a thumbnail render with an already resolved request.
func (q *Queue) DispatchThumbnail(ctx context.Context, productionID uuid.UUID, req models.ThumbnailRequest) error {
	return q.Enqueue(ctx, QueueGenerateThumbnail, &Job{
		ID:           uuid.New(),
		Type:         JobTypeGenerateThumbnail,
		ProductionID: productionID,
		Thumbnail:    &req,
	})
}
