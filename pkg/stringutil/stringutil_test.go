package stringutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "hell…", Truncate("hello world", 5))
	assert.Equal(t, "", Truncate("anything", 0))
}

func TestNormalizeCommand(t *testing.T) {
	assert.Equal(t, "npm ci", NormalizeCommand("npm \\\n   ci"))
	assert.Equal(t, "go test ./...", NormalizeCommand("  go   test\t./...  "))
}

func TestSlugify(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Build It", "build-it"},
		{":hammer: Build!", "hammer-build"},
		{"already-fine", "already-fine"},
		{"__Weird__Name__", "weird-name"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
}

func TestIsHexSHA(t *testing.T) {
	assert.True(t, IsHexSHA("11bd71901bbe5b1630ceea73d27597364c9af683"))
	assert.True(t, IsHexSHA("abc1234"))
	assert.False(t, IsHexSHA("v4"))
	assert.False(t, IsHexSHA("main"))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "make build", FirstLine("make build\nmake test"))
	assert.Equal(t, "single", FirstLine("single"))
}
