package entity

import "time"

// ScheduleStatistics represents aggregated assignment counts for an account
type ScheduleStatistics struct {
	AccountID       string     `json:"account_id"`
	Scheduled       int64      `json:"scheduled"`
	Publishing      int64      `json:"publishing"`
	Published       int64      `json:"published"`
	Failed          int64      `json:"failed"`
	NextScheduledAt *time.Time `json:"next_scheduled_at,omitempty"`
}
