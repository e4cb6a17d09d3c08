package engine

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadAPIKey(t *testing.T) {
	p := writeFile(t, "api_key.txt", "  AIzaSyExample \nsecond line\n")
	key, err := LoadAPIKey(p)
	if err != nil {
		t.Fatalf("LoadAPIKey: %v", err)
	}
	if key != "AIzaSyExample" {
		t.Errorf("key = %q", key)
	}
}

func TestLoadAPIKeyEmptyFile(t *testing.T) {
	key, err := LoadAPIKey(writeFile(t, "empty.txt", ""))
	if err != nil {
		t.Fatalf("LoadAPIKey: %v", err)
	}
	if key != "" {
		t.Errorf("key = %q, want empty", key)
	}
}

func TestLoadCountryCodes(t *testing.T) {
	p := writeFile(t, "codes.txt", "US\r\n GB \n\nde\n")
	codes, err := LoadCountryCodes(p)
	if err != nil {
		t.Fatalf("LoadCountryCodes: %v", err)
	}
	want := []string{"US", "GB", "de"}
	if !reflect.DeepEqual(codes, want) {
		t.Errorf("codes = %v, want %v", codes, want)
	}
}

func TestLoadMissingFiles(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.txt")

	_, err := LoadAPIKey(missing)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("LoadAPIKey error = %v, want ErrNotExist", err)
	}
	_, err = LoadCountryCodes(missing)
	var pathErr *fs.PathError
	if !errors.As(err, &pathErr) {
		t.Errorf("LoadCountryCodes error = %v, want *fs.PathError", err)
	}
}
