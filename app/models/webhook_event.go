package models

import "time"

// WebhookEvent is the idempotency ledger for processor events. A row exists
// if and only if the event has been fully applied; rows are write-once and
// never updated. The primary key is the processor's globally unique event
// id, so a concurrent duplicate insert fails on the key and the duplicate
// delivery becomes a no-op.
type WebhookEvent struct {
	ID          string    `gorm:"primaryKey;type:varchar(191)" json:"id"`
	Type        string    `gorm:"type:varchar(100);not null;index" json:"type"`
	ProcessedAt time.Time `gorm:"autoCreateTime" json:"processed_at"`
}
