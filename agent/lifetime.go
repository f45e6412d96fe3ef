package agent

import (
	"fmt"
	"time"

	"github.com/thorium-platform/thorium/model"
)

// fairShareCap is the wall-clock/job ceiling imposed on a FairShare worker
// whose image declares no lifetime, or declares a longer one than this.
const fairShareCap = 60 * time.Second

// lifetimeBudget tracks how much of an agent's Lifetime allowance remains,
// implementing the six-rule table: FairShare-no-lifetime caps at
// fairShareCap; FairShare+jobs caps at one job; FairShare+time caps at
// min(declared, fairShareCap); any other pool honours the image's declared
// jobs/time verbatim, or runs forever when the image declares neither.
type lifetimeBudget struct {
	maxJobs  int64 // 0 means unbounded
	maxTime  time.Duration // 0 means unbounded
	jobsDone int64
}

func newLifetimeBudget(l model.Lifetime, pool model.Pool) lifetimeBudget {
	if pool == model.PoolFairShare {
		switch {
		case l.Infinite():
			return lifetimeBudget{maxTime: fairShareCap}
		case l.Kind == model.LifetimeJobs:
			return lifetimeBudget{maxJobs: 1}
		case l.Kind == model.LifetimeTime:
			d := time.Duration(l.Amount) * time.Second
			if d > fairShareCap || d <= 0 {
				d = fairShareCap
			}
			return lifetimeBudget{maxTime: d}
		}
	}
	switch l.Kind {
	case model.LifetimeJobs:
		return lifetimeBudget{maxJobs: l.Amount}
	case model.LifetimeTime:
		return lifetimeBudget{maxTime: time.Duration(l.Amount) * time.Second}
	default:
		return lifetimeBudget{}
	}
}

// RecordJob increments the jobs-completed counter, called once per claimed
// job regardless of its outcome.
func (b *lifetimeBudget) RecordJob() { b.jobsDone++ }

// Exhausted reports whether this agent has used up its Lifetime budget as
// of now, given it started running at start.
func (b lifetimeBudget) Exhausted(start, now time.Time) bool {
	if b.maxJobs > 0 && b.jobsDone >= b.maxJobs {
		return true
	}
	if b.maxTime > 0 && now.Sub(start) >= b.maxTime {
		return true
	}
	return false
}

func (b lifetimeBudget) String() string {
	switch {
	case b.maxJobs > 0 && b.maxTime > 0:
		return fmt.Sprintf("%d jobs or %s", b.maxJobs, b.maxTime)
	case b.maxJobs > 0:
		return fmt.Sprintf("%d jobs", b.maxJobs)
	case b.maxTime > 0:
		return b.maxTime.String()
	default:
		return "infinite"
	}
}
