// Package notify posts run outcomes to a Slack incoming webhook.
package notify

import "time"

// Provider is the notification contract for transfer runs.
type Provider interface {
	RunStarted(runID, source, target string, jobCount int) error
	RunCompleted(runID string, startTime time.Time, duration time.Duration, jobCount int, rowCount int64) error
	RunCompletedWithErrors(runID string, startTime time.Time, duration time.Duration, succeeded, failed int, rowCount int64, failures []string) error
	RunFailed(runID string, err error, duration time.Duration) error
	JobFailed(runID, job, state string, err error) error
}

var _ Provider = (*Notifier)(nil)
