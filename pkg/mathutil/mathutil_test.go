package mathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 5.0, Clamp(5, 0, 10))
	assert.Equal(t, 0.0, Clamp(-3, 0, 10))
	assert.Equal(t, 10.0, Clamp(42, 0, 10))
}

func TestClampInt(t *testing.T) {
	assert.Equal(t, 2, ClampInt(1, 2, 8))
	assert.Equal(t, 8, ClampInt(99, 2, 8))
	assert.Equal(t, 4, ClampInt(4, 2, 8))
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 33.3, Round1(33.333))
	assert.Equal(t, 66.7, Round1(66.66))
	assert.Equal(t, -1.5, Round1(-1.46))
}
