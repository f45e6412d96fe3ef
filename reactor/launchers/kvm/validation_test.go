package kvm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidDomainName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"lowercase", "myworker", true},
		{"dashes", "my-worker", true},
		{"underscores", "my_worker", true},
		{"leading underscore", "_worker", true},
		{"mixed case", "MyWorker", true},
		{"with digits", "worker123", true},
		{"exactly 64 chars", "a" + strings.Repeat("b", 63), true},
		{"empty", "", false},
		{"leading digit", "1worker", false},
		{"leading dash", "-worker", false},
		{"contains space", "my worker", false},
		{"contains dot", "my.worker", false},
		{"contains slash", "my/worker", false},
		{"65 chars", "a" + strings.Repeat("b", 64), false},
		{"only digits", "123456", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsValidDomainName(tc.in))
		})
	}
}
