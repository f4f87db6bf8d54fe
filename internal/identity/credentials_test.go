// If you are AI: This file contains unit tests for the admin credentials store.

package identity

import (
	"path/filepath"
	"testing"
)

func TestSaveAndCheckCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	creds, err := SaveCredentials(path, "admin", "hunter2")
	if err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}
	if !creds.Configured() {
		t.Fatal("credentials not configured after save")
	}

	if !creds.Check("admin", "hunter2") {
		t.Error("valid login rejected")
	}
	if !creds.Check("ADMIN", "hunter2") {
		t.Error("username comparison should be case-insensitive")
	}
	if creds.Check("admin", "wrong") {
		t.Error("wrong password accepted")
	}
	if creds.Check("other", "hunter2") {
		t.Error("wrong username accepted")
	}
}

func TestLoadCredentialsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	saved, _ := SaveCredentials(path, "admin", "hunter2")

	loaded, err := LoadCredentials(path)
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if loaded != saved {
		t.Errorf("round trip mismatch: %+v vs %+v", loaded, saved)
	}
	if !loaded.Check("admin", "hunter2") {
		t.Error("loaded credentials rejected valid login")
	}
}

func TestLoadMissingCredentials(t *testing.T) {
	creds, err := LoadCredentials(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if creds.Configured() {
		t.Error("missing file should yield unconfigured credentials")
	}
	if creds.Check("", "") {
		t.Error("unconfigured credentials should reject every login")
	}
}

func TestSaltRotatesOnSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	first, _ := SaveCredentials(path, "admin", "hunter2")
	second, _ := SaveCredentials(path, "admin", "hunter2")

	if first.Salt == second.Salt {
		t.Error("salt did not rotate across saves")
	}
	if first.PasswordHash == second.PasswordHash {
		t.Error("hash should differ under a fresh salt")
	}
}
