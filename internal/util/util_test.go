// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the traceagent client.
package util

import (
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// STRING TESTS
// =============================================================================

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxRunes int
		want     string
	}{
		{"shorter than max", "hello", 10, "hello"},
		{"exactly max", "hello", 5, "hello"},
		{"truncated with ellipsis", "hello world", 8, "hello..."},
		{"zero max", "hello", 0, ""},
		{"tiny max", "hello", 2, "he"},
		{"multibyte safe", "héllo wörld", 8, "héllo..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateRunes(tt.input, tt.maxRunes); got != tt.want {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.input, tt.maxRunes, got, tt.want)
			}
		})
	}
}

func TestTruncateRunesNoEllipsis(t *testing.T) {
	if got := TruncateRunesNoEllipsis("hello world", 5); got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
	if got := TruncateRunesNoEllipsis("héllo", 2); got != "hé" {
		t.Errorf("got %q, want %q", got, "hé")
	}
	if got := TruncateRunesNoEllipsis("short", 10); got != "short" {
		t.Errorf("got %q, want %q", got, "short")
	}
}

func TestRuneLen(t *testing.T) {
	if RuneLen("héllo") != 5 {
		t.Error("RuneLen should count runes, not bytes")
	}
}

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFileWithDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "session.json")

	if err := AtomicWriteFileWithDir(path, []byte("first"), 0600, 0700); err != nil {
		t.Fatalf("AtomicWriteFileWithDir failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "first" {
		t.Errorf("content = %q, want %q", data, "first")
	}

	info, err := os.Stat(filepath.Dir(path))
	if err != nil {
		t.Fatalf("stat dir failed: %v", err)
	}
	if info.Mode().Perm() != 0700 {
		t.Errorf("dir perm = %v, want 0700", info.Mode().Perm())
	}
	finfo, _ := os.Stat(path)
	if finfo.Mode().Perm() != 0600 {
		t.Errorf("file perm = %v, want 0600", finfo.Mode().Perm())
	}

	// Overwrite replaces the whole file.
	if err := AtomicWriteFileWithDir(path, []byte("second"), 0600, 0700); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "second" {
		t.Errorf("content after overwrite = %q, want %q", data, "second")
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected 1 file in dir, found %d", len(entries))
	}
}
