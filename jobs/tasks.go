package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeGenerateDues is the task type for monthly due generation.
	TaskTypeGenerateDues = "billing:generate_dues"
)

// GenerateDuesPayload parameterises a due generation run.
type GenerateDuesPayload struct {
	Operator string `json:"operator"`
	Notes    string `json:"notes"`
}

// NewGenerateDuesTask constructs an Asynq task.
func NewGenerateDuesTask(payload GenerateDuesPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeGenerateDues, data), nil
}
