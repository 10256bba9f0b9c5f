package db

import (
	"time"
)

// Outbox kinds.
const (
	KindSwipeJob            = "swipe_job"
	KindSwipeApplicant      = "swipe_applicant"
	KindNotificationRead    = "notification_read"
	KindNotificationReadAll = "notification_read_all"
)

// PendingAction is a confirmation the server never acknowledged.
//
// Composite PK: (Kind, TargetID)
//   - One row per target; a second failure for the same target bumps Attempts.
//
// Indexes:
//   - idx_pending_updated_target(updated_at DESC, target_id)
//     Serves the newest-first listing with cursor pagination.
//
// Fields:
//   - TargetID: job, application or notification id. 0 for read-all.
//   - Direction: LEFT/RIGHT for swipes, empty otherwise.
type PendingAction struct {
	Kind      string    `gorm:"primaryKey;size:32"`
	TargetID  int64     `gorm:"primaryKey;autoIncrement:false;index:idx_pending_updated_target,priority:2"`
	Direction string    `gorm:"size:8"`
	Attempts  int       `gorm:"not null;default:1"`
	LastError string    `gorm:"size:512"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;index:idx_pending_updated_target,priority:1,sort:desc"`
}
