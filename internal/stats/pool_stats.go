// Package stats holds driver-neutral connection metrics.
package stats

import (
	"database/sql"
	"fmt"
	"time"
)

// PoolStats is a snapshot of one role's database/sql handle. Conns are
// capped at one session, so waits mean statements queued behind each other.
type PoolStats struct {
	Role     string
	Driver   string
	Open     int
	InUse    int
	Idle     int
	Waits    int64
	WaitTime time.Duration
	Reopened int64 // sessions closed for idleness or lifetime and opened again
}

// FromDB captures db.Stats() for role.
func FromDB(role, driver string, s sql.DBStats) PoolStats {
	return PoolStats{
		Role:     role,
		Driver:   driver,
		Open:     s.OpenConnections,
		InUse:    s.InUse,
		Idle:     s.Idle,
		Waits:    s.WaitCount,
		WaitTime: s.WaitDuration,
		Reopened: s.MaxIdleClosed + s.MaxIdleTimeClosed + s.MaxLifetimeClosed,
	}
}

// AvgWait is the mean time a statement waited for the session.
func (s PoolStats) AvgWait() time.Duration {
	if s.Waits == 0 {
		return 0
	}
	return s.WaitTime / time.Duration(s.Waits)
}

func (s PoolStats) String() string {
	return fmt.Sprintf("%s(%s) open=%d in_use=%d idle=%d waits=%d avg_wait=%s reopened=%d",
		s.Role, s.Driver, s.Open, s.InUse, s.Idle, s.Waits, s.AvgWait().Round(time.Microsecond), s.Reopened)
}
