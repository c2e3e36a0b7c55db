// Package testutil provides helpers shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFixture writes content to name under a fresh temp dir and returns
// the full path. Parent directories in name are created as needed, so
// fixtures like ".github/workflows/ci.yml" work directly.
func WriteFixture(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating fixture dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
	return path
}

// WriteRepoFixture writes multiple files under one temp root, keyed by
// relative path, and returns the root. Used by directory-walk tests.
func WriteRepoFixture(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("creating fixture dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("writing fixture %s: %v", name, err)
		}
	}
	return root
}
