package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLicenseExpireSweep demotes licenses expired beyond grace.
	TaskLicenseExpireSweep = "license:expire_sweep"
	// TaskEdgeOfflineScan marks silent edge servers offline.
	TaskEdgeOfflineScan = "edge:offline_scan"
)

// NewLicenseExpireSweepTask constructs the sweep task. The sweep takes
// no payload; everything it needs comes from the database.
func NewLicenseExpireSweepTask() *asynq.Task {
	return asynq.NewTask(TaskLicenseExpireSweep, nil)
}

// NewEdgeOfflineScanTask constructs the offline scan task.
func NewEdgeOfflineScanTask() *asynq.Task {
	return asynq.NewTask(TaskEdgeOfflineScan, nil)
}
