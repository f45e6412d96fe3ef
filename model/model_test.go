package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResourcesEnough(t *testing.T) {
	cases := []struct {
		name string
		have Resources
		want Resources
		ok   bool
	}{
		{"exact fit", Resources{CPUMilli: 1000, MemoryMiB: 512, WorkerSlots: 1}, Resources{CPUMilli: 1000, MemoryMiB: 512, WorkerSlots: 1}, true},
		{"short on memory", Resources{CPUMilli: 1000, MemoryMiB: 256, WorkerSlots: 1}, Resources{CPUMilli: 1000, MemoryMiB: 512, WorkerSlots: 1}, false},
		{"no worker slots excludes regardless", Resources{CPUMilli: 99999, MemoryMiB: 99999, WorkerSlots: 0}, Resources{CPUMilli: 1, MemoryMiB: 1, WorkerSlots: 1}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.ok, c.have.Enough(c.want))
		})
	}
}

func TestResourcesSubSaturates(t *testing.T) {
	r := Resources{CPUMilli: 100}.Sub(Resources{CPUMilli: 500})
	assert.Equal(t, int64(0), r.CPUMilli)
}

func TestResourcesAddIsElementwise(t *testing.T) {
	a := Resources{CPUMilli: 100, MemoryMiB: 10}
	b := Resources{CPUMilli: 50, NvidiaGPU: 1}
	sum := a.Add(b)
	assert.Equal(t, int64(150), sum.CPUMilli)
	assert.Equal(t, int64(10), sum.MemoryMiB)
	assert.Equal(t, int64(1), sum.NvidiaGPU)
}

func TestImageValidate(t *testing.T) {
	valid := Image{Group: "g", Name: "n", ScalerKind: ScalerK8s}
	assert.NoError(t, valid.Validate())

	missingName := Image{Group: "g", ScalerKind: ScalerK8s}
	assert.Error(t, missingName.Validate())

	badScaler := Image{Group: "g", Name: "n", ScalerKind: "Quantum"}
	assert.Error(t, badScaler.Validate())
}

func TestPipelineValidateChecksStagesHaveImages(t *testing.T) {
	images := map[string]Image{
		"extract": {Group: "g", Name: "extract", ScalerKind: ScalerKVM},
	}
	p := Pipeline{Group: "g", Name: "p", Order: [][]string{{"extract"}, {"missing"}}}
	err := p.Validate(images)
	assert.ErrorContains(t, err, "missing")
}

func TestPipelineValidateRejectsEmptyOrder(t *testing.T) {
	p := Pipeline{Group: "g", Name: "p"}
	assert.Error(t, p.Validate(nil))
}

func TestJobStatusTerminal(t *testing.T) {
	assert.True(t, JobCompleted.Terminal())
	assert.True(t, JobFailed.Terminal())
	assert.False(t, JobRunning.Terminal())
	assert.False(t, JobSleeping.Terminal())
}

func TestLifetimeInfinite(t *testing.T) {
	assert.True(t, Lifetime{}.Infinite())
	assert.False(t, Lifetime{Kind: LifetimeJobs, Amount: 10}.Infinite())
}

func TestNotificationExpires(t *testing.T) {
	info := Notification{Level: NotificationInfo, Created: time.Now()}
	assert.True(t, info.Expires(false))
	assert.False(t, info.Expires(true))

	errNotif := Notification{Level: NotificationError}
	assert.False(t, errNotif.Expires(false))
}
