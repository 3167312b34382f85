package jobqueue

import (
	"encoding/json"
	"time"
)

const (
	// Redis keys
	JobQueueKey = "billing_job_queue"

	// Job settings
	DefaultMaxRetries = 3
)

// Job types
const (
	JobTypeTrialReminder = "trial_reminder"
)

// Job is one unit of background work.
type Job struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	CreatedAt time.Time       `json:"created_at"`
}

// TrialReminderPayload carries everything the reminder email needs, so the
// worker does not have to hit the database again.
type TrialReminderPayload struct {
	UserID   uint      `json:"user_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	PlanName string    `json:"plan_name"`
	TrialEnd time.Time `json:"trial_end"`
}
