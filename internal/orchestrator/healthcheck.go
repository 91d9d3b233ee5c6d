package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/johndauphine/table-transfer/internal/config"
	"github.com/johndauphine/table-transfer/internal/driver"
)

// HealthCheckResult reports connectivity to both databases.
type HealthCheckResult struct {
	Timestamp       string `json:"timestamp"`
	SourceDBType    string `json:"source_db_type"`
	TargetDBType    string `json:"target_db_type"`
	SourceConnected bool   `json:"source_connected"`
	TargetConnected bool   `json:"target_connected"`
	SourceLatencyMs int64  `json:"source_latency_ms"`
	TargetLatencyMs int64  `json:"target_latency_ms"`
	SourceError     string `json:"source_error,omitempty"`
	TargetError     string `json:"target_error,omitempty"`
	Healthy         bool   `json:"healthy"`
}

const checkTimeout = 30 * time.Second

// HealthCheck opens and pings source and target concurrently, each with its
// own timeout.
func (o *Orchestrator) HealthCheck(ctx context.Context) *HealthCheckResult {
	result := &HealthCheckResult{
		Timestamp:    time.Now().Format(time.RFC3339),
		SourceDBType: driver.Canonicalize(o.config.Source.Type),
		TargetDBType: driver.Canonicalize(o.config.Target.Type),
	}

	check := func(role string, cfg *config.Connection, ok *bool, latency *int64, msg *string) {
		start := time.Now()
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()

		conn, err := driver.Open(cctx, role, cfg)
		if err != nil {
			*msg = err.Error()
		} else {
			*ok = true
			conn.Close()
		}
		*latency = time.Since(start).Milliseconds()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		check("source", &o.config.Source, &result.SourceConnected, &result.SourceLatencyMs, &result.SourceError)
	}()
	go func() {
		defer wg.Done()
		check("target", &o.config.Target, &result.TargetConnected, &result.TargetLatencyMs, &result.TargetError)
	}()
	wg.Wait()

	result.Healthy = result.SourceConnected && result.TargetConnected
	return result
}
