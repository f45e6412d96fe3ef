package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerPopDueReturnsOnlyExpiredTasks(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &Scheduler{}
	s.Schedule(now.Add(-time.Second), Task{Kind: TaskLogFlush})
	s.Schedule(now.Add(time.Hour), Task{Kind: TaskResourceRefresh})

	due := s.PopDue(now)
	assert.Len(t, due, 1)
	assert.Equal(t, TaskLogFlush, due[0].Kind)
	assert.Equal(t, 1, s.Len())
}

func TestSchedulerPopDueIsOrderedByDueTime(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &Scheduler{}
	s.Schedule(now.Add(2*time.Second), Task{Kind: TaskHealthHeartbeat})
	s.Schedule(now.Add(-2*time.Second), Task{Kind: TaskLogFlush})
	s.Schedule(now.Add(-1*time.Second), Task{Kind: TaskResourceRefresh})

	due := s.PopDue(now)
	assert.Equal(t, []Task{{Kind: TaskLogFlush}, {Kind: TaskResourceRefresh}}, due)
}

func TestNewSchedulerSeedsAllKinds(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewScheduler(now)
	assert.Equal(t, 3, s.Len())
	assert.Empty(t, s.PopDue(now))
	assert.Len(t, s.PopDue(now.Add(time.Minute)), 3)
}
