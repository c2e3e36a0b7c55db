package sliceutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContains(t *testing.T) {
	assert.True(t, Contains([]string{"a", "b"}, "b"))
	assert.False(t, Contains([]string{"a", "b"}, "c"))
	assert.False(t, Contains(nil, "a"))
}

func TestContainsAny(t *testing.T) {
	assert.True(t, ContainsAny("docker build -t app .", "--cache-from", "docker build"))
	assert.False(t, ContainsAny("npm ci", "docker"))
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Dedupe([]string{"a", "b", "a", "c", "b"}))
}

func TestRemove(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, Remove([]string{"a", "b", "c"}, "b"))
	assert.Empty(t, Remove([]string{"b", "b"}, "b"))
}
