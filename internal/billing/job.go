package billing

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/clubward/clubward/jobs"
)

// GenerateDuesJob processes monthly due generation tasks.
type GenerateDuesJob struct {
	service *Service
	logger  *slog.Logger
}

// NewGenerateDuesJob constructs a job handler.
func NewGenerateDuesJob(service *Service, logger *slog.Logger) *GenerateDuesJob {
	return &GenerateDuesJob{service: service, logger: logger}
}

// Handle fulfils the asynq.HandlerFunc contract. Malformed payloads are not
// retried; generation failures are, since the unique due constraint makes
// retries converge.
func (j *GenerateDuesJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload jobs.GenerateDuesPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Operator == "" {
		payload.Operator = "scheduler"
	}
	result, err := j.service.GenerateMonthlyDues(ctx, payload.Operator, payload.Notes)
	if err != nil {
		if j.logger != nil {
			j.logger.Error("generate dues", slog.String("operator", payload.Operator), slog.Any("error", err))
		}
		return err
	}
	if j.logger != nil {
		j.logger.Info("generate dues task done",
			slog.Int("processed", result.ProcessedEnrollments),
			slog.Int("created", result.CreatedDues))
	}
	return nil
}
