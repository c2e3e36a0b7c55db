package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		namespace string
		pattern   string
		want      bool
	}{
		{"providers:github", "*", true},
		{"providers:github", "providers:github", true},
		{"providers:github", "providers:*", true},
		{"providers:github", "*:github", true},
		{"providers:github", "analyzer:*", false},
		{"providers:github", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchPattern(tt.namespace, tt.pattern), "%s vs %s", tt.namespace, tt.pattern)
	}
}

func TestExclusionTakesPrecedence(t *testing.T) {
	old := debugEnv
	defer func() { debugEnv = old }()

	debugEnv = "providers:*,-providers:github"
	assert.False(t, computeEnabled("providers:github"))
	assert.True(t, computeEnabled("providers:gitlab"))
}

func TestDisabledLoggerIsCheap(t *testing.T) {
	old := debugEnv
	defer func() { debugEnv = old }()

	debugEnv = ""
	l := New("quiet:namespace")
	assert.False(t, l.Enabled())
	l.Printf("never rendered %d", 42)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "500ms", formatDuration(500*1e6))
	assert.Equal(t, "2.0s", formatDuration(2*1e9))
}
