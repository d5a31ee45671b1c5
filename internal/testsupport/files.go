package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile stands in for a camera clip: size bytes of filler at path. The
// content is constant so equal sizes hash equally.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	WriteContent(t, path, bytes.Repeat([]byte{'B'}, int(max(size, 1))))
}

// WriteContent writes data to path, creating parent directories.
func WriteContent(t testing.TB, path string, data []byte) {
	t.Helper()
	mkdirParent(t, path)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteStub writes an executable /bin/sh script with the given body. Tests
// use it to fake gopro2gpx, ffprobe and mapillary_tools.
func WriteStub(t testing.TB, path, body string) {
	t.Helper()
	mkdirParent(t, path)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", path, err)
	}
}

func mkdirParent(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
}
