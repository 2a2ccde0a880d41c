package queue

import (
	"fmt"
	"time"

	"github.com/dunamismax/rasterflow/internal/domain"
	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
)

const TypeDecodeImage = "image:decode"

type DecodeImagePayload struct {
	JobID       string               `json:"job_id"`
	UserID      string               `json:"user_id,omitempty"`
	SourceType  string               `json:"source_type"`
	WebhookURL  string               `json:"webhook_url,omitempty"`
	ObjectKey   string               `json:"object_key,omitempty"`
	SourceURL   string               `json:"source_url,omitempty"`
	Decode      domain.DecodeOptions `json:"decode"`
	RequestedAt time.Time            `json:"requested_at"`
}

func PayloadForJob(job domain.Job, requestedAt time.Time) DecodeImagePayload {
	return DecodeImagePayload{
		JobID:       job.ID,
		UserID:      job.UserID,
		SourceType:  job.SourceType,
		WebhookURL:  job.WebhookURL,
		ObjectKey:   job.ObjectKey,
		SourceURL:   job.SourceURL,
		Decode:      job.Decode,
		RequestedAt: requestedAt,
	}
}

func NewDecodeImageTask(payload DecodeImagePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal decode payload: %w", err)
	}
	return asynq.NewTask(TypeDecodeImage, body), nil
}

func ParseDecodeImagePayload(task *asynq.Task) (DecodeImagePayload, error) {
	var payload DecodeImagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DecodeImagePayload{}, fmt.Errorf("unmarshal decode payload: %w", err)
	}
	return payload, nil
}
