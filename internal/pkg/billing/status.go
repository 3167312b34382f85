package billing

import (
	"log"
	"strings"

	"github.com/subsyncapp/subsync/app/models"
)

var remoteStatusMap = map[string]string{
	"active":             models.SubscriptionStatusActive,
	"trialing":           models.SubscriptionStatusTrialing,
	"past_due":           models.SubscriptionStatusPastDue,
	"canceled":           models.SubscriptionStatusCanceled,
	"unpaid":             models.SubscriptionStatusUnpaid,
	"incomplete":         models.SubscriptionStatusIncomplete,
	"incomplete_expired": models.SubscriptionStatusIncompleteExpired,
}

// MapRemoteStatus maps a processor-reported status onto the local enum.
// Unrecognized statuses map to INCOMPLETE instead of failing; the warning
// is the signal that the processor grew a state this system doesn't know.
func MapRemoteStatus(remote string) string {
	normalized := strings.ToLower(strings.TrimSpace(remote))
	if status, ok := remoteStatusMap[normalized]; ok {
		return status
	}
	log.Printf("billing: unrecognized remote subscription status %q, mapping to INCOMPLETE", remote)
	return models.SubscriptionStatusIncomplete
}
