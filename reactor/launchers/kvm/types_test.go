package kvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateToString(t *testing.T) {
	cases := []struct {
		name  string
		state int32
		want  string
	}{
		{"no state", DomainNoState, "unknown (0)"},
		{"running", DomainRunning, "running"},
		{"blocked", DomainBlocked, "unknown (2)"},
		{"paused", DomainPaused, "paused"},
		{"shutoff", DomainShutoff, "shut off"},
		{"crashed", DomainCrashed, "crashed"},
		{"unrecognized", 99, "unknown (99)"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StateToString(tc.state))
		})
	}
}

func TestLaunchResultCarriesFailureStage(t *testing.T) {
	r := LaunchResult{Success: false, ErrorMessage: "boom", Stage: "defining_domain"}
	assert.False(t, r.Success)
	assert.NotEmpty(t, r.ErrorMessage)
	assert.Equal(t, "defining_domain", r.Stage)
}
