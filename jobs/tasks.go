package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTenancyAudit is the task type for the role-footprint sweep.
	TaskTenancyAudit = "tenancy:audit"
)

// TenancyAuditPayload tunes one footprint sweep run.
type TenancyAuditPayload struct {
	// BatchSize bounds how many users are loaded per query page.
	BatchSize int `json:"batch_size"`
}

// NewTenancyAuditTask constructs an Asynq task for the footprint sweep.
func NewTenancyAuditTask(payload TenancyAuditPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTenancyAudit, data), nil
}
