package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeState(t *testing.T) {
	assert.Equal(t, "VA", NormalizeState("VA"))
	assert.Equal(t, "VA", NormalizeState("va"))
	assert.Equal(t, "VA", NormalizeState("Virginia"))
	assert.Equal(t, "VA", NormalizeState("  virginia "))
	assert.Equal(t, "DC", NormalizeState("District of Columbia"))
	// Unrecognized tokens pass through trimmed.
	assert.Equal(t, "Ontario", NormalizeState(" Ontario "))
	assert.Equal(t, "", NormalizeState(""))
}

func TestStateEquivalent(t *testing.T) {
	assert.True(t, StateEquivalent("VA", "Virginia"))
	assert.True(t, StateEquivalent("Virginia", "va"))
	assert.True(t, StateEquivalent("TX", "tx"))
	assert.False(t, StateEquivalent("VA", "MD"))
	assert.False(t, StateEquivalent("", "VA"))
	assert.False(t, StateEquivalent("VA", ""))
}
