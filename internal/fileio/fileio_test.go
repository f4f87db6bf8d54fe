// If you are AI: This file contains unit tests for atomic JSON persistence.

package fileio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	in := payload{Name: "glint", Count: 3}
	if err := WriteJSON(path, &in); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var out payload
	if err := ReadJSON(path, &out); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestWriteCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "apps.json")
	if err := WriteJSON(path, map[string]int{"version": 2}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if !Exists(path) {
		t.Error("file was not created")
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	for i := 0; i < 3; i++ {
		if err := WriteJSON(path, payload{Count: i}); err != nil {
			t.Fatalf("WriteJSON: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 file, found %d", len(entries))
	}
}

func TestReadMissingFile(t *testing.T) {
	var out payload
	if err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &out); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte("{not json"), 0o644)

	var out payload
	if err := ReadJSON(path, &out); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
