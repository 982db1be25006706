package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisitedSet_VisitOnce(t *testing.T) {
	v := newVisitedSet()

	assert.True(t, v.Visit("a"))
	assert.False(t, v.Visit("a"))
	assert.True(t, v.Visit("b"))

	assert.True(t, v.Seen("a"))
	assert.False(t, v.Seen("c"))
	assert.Equal(t, []string{"a", "b"}, v.Order())
}

func TestVisitedSet_QueueSkipsSeenAndDuplicates(t *testing.T) {
	v := newVisitedSet()
	v.Visit("a")

	assert.False(t, v.Queue("a", "a"), "evaluated field is not queued again")
	assert.True(t, v.Queue("b", "a"))
	assert.False(t, v.Queue("b", "a"), "already queued")
}

func TestVisitedSet_OnChain(t *testing.T) {
	v := newVisitedSet()
	v.Visit("a")
	v.Queue("b", "a")
	v.Queue("t", "a")
	v.Visit("b")
	v.Queue("c", "b")

	assert.True(t, v.OnChain("c", "c"), "self")
	assert.True(t, v.OnChain("c", "b"))
	assert.True(t, v.OnChain("c", "a"), "root of the chain")
	assert.False(t, v.OnChain("b", "t"), "sibling branch")
	assert.False(t, v.OnChain("a", "b"), "descendant")
}

func TestVisitedSet_RefuseCollapsesRepeats(t *testing.T) {
	v := newVisitedSet()
	v.Refuse("x")
	v.Refuse("y")
	v.Refuse("x")

	assert.Equal(t, []string{"x", "y"}, v.Refused())
}
