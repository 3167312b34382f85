package jobqueue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/subsyncapp/subsync/app/models"
	"github.com/subsyncapp/subsync/internal/pkg/mail"
)

// RegisterTrialReminderProcessor wires the trial reminder handler into the
// queue.
func RegisterTrialReminderProcessor(q *Queue) {
	q.Register(JobTypeTrialReminder, processTrialReminder)
}

func processTrialReminder(ctx context.Context, job *Job) error {
	var payload TrialReminderPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		// Malformed payloads can never succeed; drop instead of retrying.
		log.Printf("jobqueue: dropping malformed trial reminder %s: %v", job.ID, err)
		return nil
	}

	planName := payload.PlanName
	if planName == "" {
		planName = "current"
	}
	return mail.SendTrialEndingSoon(payload.Email, payload.Name, planName, payload.TrialEnd)
}

// TrialNotifier enqueues trial reminder emails. It satisfies the lifecycle
// service's notifier contract: enqueueing is quick and a failure is logged,
// never surfaced, so notification can never fail a subscription transition.
type TrialNotifier struct {
	queue *Queue
}

// NewTrialNotifier creates a notifier backed by the given queue.
func NewTrialNotifier(q *Queue) *TrialNotifier {
	return &TrialNotifier{queue: q}
}

// NotifyTrialWillEnd schedules the reminder email for a subscription.
func (n *TrialNotifier) NotifyTrialWillEnd(user *models.User, sub *models.Subscription) {
	payload := TrialReminderPayload{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}
	if sub.Plan != nil {
		payload.PlanName = sub.Plan.Name
	}
	if sub.TrialEnd != nil {
		payload.TrialEnd = *sub.TrialEnd
	} else {
		payload.TrialEnd = time.Now()
	}

	if _, err := n.queue.Enqueue(JobTypeTrialReminder, payload); err != nil {
		log.Printf("jobqueue: failed to enqueue trial reminder for user %d: %v", user.ID, err)
	}
}
