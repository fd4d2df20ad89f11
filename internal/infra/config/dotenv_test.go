package config_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/mkrupp/pantry/internal/infra/config"
)

//nolint:paralleltest
func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")

	content := "PANTRY_DOTENV_FROM_FILE=file\nPANTRY_DOTENV_PRESET=file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	t.Setenv("PANTRY_DOTENV_PRESET", "env")
	t.Setenv("PANTRY_DOTENV_FROM_FILE", "")
	os.Unsetenv("PANTRY_DOTENV_FROM_FILE")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}

	if got := os.Getenv("PANTRY_DOTENV_FROM_FILE"); got != "file" {
		t.Errorf("PANTRY_DOTENV_FROM_FILE = %q, want %q", got, "file")
	}

	if got := os.Getenv("PANTRY_DOTENV_PRESET"); got != "env" {
		t.Errorf("PANTRY_DOTENV_PRESET = %q, want %q", got, "env")
	}
}
