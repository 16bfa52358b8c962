package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeApprovalCleanup = "approval:cleanup"
	TaskTypeSessionAudit    = "session:audit"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// ApprovalCleanupPayload parameterizes the expired-approval sweep.
type ApprovalCleanupPayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

// SessionAuditPayload parameterizes the session audit run.
type SessionAuditPayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

// NewApprovalCleanupTask builds a task that removes lapsed approvals and
// shuts their farming down.
func NewApprovalCleanupTask() (*asynq.Task, error) {
	payload, err := json.Marshal(ApprovalCleanupPayload{RequestedAt: time.Now().UTC()})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeApprovalCleanup, payload, asynq.Queue(QueueDefault)), nil
}

// NewSessionAuditTask builds a task that reconciles stored session blobs with
// live connections.
func NewSessionAuditTask() (*asynq.Task, error) {
	payload, err := json.Marshal(SessionAuditPayload{RequestedAt: time.Now().UTC()})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeSessionAudit, payload, asynq.Queue(QueueLow)), nil
}
