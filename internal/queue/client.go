package queue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is satisfied by Client; the API depends on it so tests can
// capture payloads without redis.
type Enqueuer interface {
	EnqueueDecodeImage(ctx context.Context, payload DecodeImagePayload) (*asynq.TaskInfo, error)
}

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(redisOpt asynq.RedisClientOpt, queueName string) *Client {
	return &Client{
		client: asynq.NewClient(redisOpt),
		queue:  queueName,
	}
}

func (c *Client) EnqueueDecodeImage(ctx context.Context, payload DecodeImagePayload) (*asynq.TaskInfo, error) {
	task, err := NewDecodeImageTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(
		ctx,
		task,
		asynq.Queue(c.queue),
		asynq.TaskID(payload.JobID),
		asynq.MaxRetry(5),
		asynq.Timeout(3*time.Minute),
	)
}

func (c *Client) Close() error {
	return c.client.Close()
}
