package logging

import (
	"strconv"
	"time"
)

// TickFields returns the standard field set stamped on every scaler-loop log
// line for one tick.
func TickFields(scalerKind string, tick int64) map[string]string {
	return map[string]string{
		"scaler": scalerKind,
		"tick":   strconv.FormatInt(tick, 10),
	}
}

// BatchFields returns the standard field set stamped on every event-handler
// or search-streamer log line for one pop/clear batch.
func BatchFields(eventType string, batchSize int) map[string]string {
	return map[string]string{
		"event_type": eventType,
		"batch_size": strconv.Itoa(batchSize),
	}
}

// JobFields returns the standard field set stamped on every agent log line
// while a job is claimed.
func JobFields(jobID, reaction, stage string) map[string]string {
	return map[string]string{
		"job_id":   jobID,
		"reaction": reaction,
		"stage":    stage,
	}
}

// Duration renders d the way every component logs elapsed time: a
// millisecond-rounded, human-legible string.
func Duration(d time.Duration) string { return d.Round(time.Millisecond).String() }
