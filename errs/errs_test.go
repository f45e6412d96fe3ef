package errs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapAndIs(t *testing.T) {
	base := fmt.Errorf("connection refused")
	err := Wrap(Unavailable, "dial mds", base)

	assert.True(t, Is(err, Unavailable))
	assert.False(t, Is(err, NotFound))
	assert.True(t, Retryable(err))
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(fmt.Errorf("plain")))
	assert.False(t, Retryable(New(Validation, "bad input")))
}

func TestNewRoundTrip(t *testing.T) {
	err := New(NotFound, "job missing")
	assert.EqualError(t, err, "not_found: job missing")
	assert.True(t, Is(err, NotFound))
}
