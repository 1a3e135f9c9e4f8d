package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bobarin/photoscript/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// QueueJobs holds match and generate jobs. The job row in the store is the
// source of truth; the message only points at it.
const QueueJobs = "photoscript:queue:jobs"

type Queue struct {
	client *redis.Client
	name   string
}

type Message struct {
	ID        uuid.UUID      `json:"id"`
	Type      models.JobType `json:"type"`
	ProjectID uuid.UUID      `json:"project_id"`
	CreatedAt time.Time      `json:"created_at"`
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client, name: QueueJobs}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// Enqueue pushes a pointer to job onto the tail of the queue.
func (q *Queue) Enqueue(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(Message{
		ID:        job.ID,
		Type:      job.Type,
		ProjectID: job.ProjectID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.client.RPush(ctx, q.name, data).Err()
}

// Dequeue blocks up to timeout for the next message. It returns nil, nil
// when nothing arrived in time.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Message, error) {
	result, err := q.client.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	var msg Message
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &msg, nil
}

func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.name).Result()
}
