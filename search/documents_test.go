package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocIDIsDeterministic(t *testing.T) {
	a := DocID("ResultSearch", "item-1", "group-a")
	b := DocID("ResultSearch", "item-1", "group-a")
	assert.Equal(t, a, b)
}

func TestDocIDDistinguishesFields(t *testing.T) {
	base := DocID("ResultSearch", "item-1", "group-a")
	assert.NotEqual(t, base, DocID("TagSearch", "item-1", "group-a"))
	assert.NotEqual(t, base, DocID("ResultSearch", "item-2", "group-a"))
	assert.NotEqual(t, base, DocID("ResultSearch", "item-1", "group-b"))
}
