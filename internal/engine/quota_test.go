package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckHops_WithinLimit(t *testing.T) {
	for hops := 0; hops <= 3; hops++ {
		assert.NoError(t, checkHops("recalc", hops, 3))
	}
}

func TestCheckHops_Exceeded(t *testing.T) {
	err := checkHops("recalc", 4, 3)
	require.Error(t, err)

	var he *HopsExceededError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "recalc", he.Event)
	assert.Equal(t, 4, he.Hops)
	assert.Equal(t, 3, he.Limit)
	assert.Contains(t, err.Error(), "4 hops > 3")
}

func TestIsHopsExceededError_Wrapped(t *testing.T) {
	err := fmt.Errorf("deliver: %w", checkHops("x", 2, 1))
	assert.True(t, IsHopsExceededError(err))
	assert.False(t, IsHopsExceededError(fmt.Errorf("other")))
}
