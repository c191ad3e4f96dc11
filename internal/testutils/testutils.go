package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"

	"github.com/nfrund/huddle/internal/config"
)

// ConfigForTests reads .env.test from the module root, applies overrides on
// top and returns the resulting configuration. The process environment is
// not consulted, so tests see the same values on every machine.
func ConfigForTests(t *testing.T, overrides map[string]string) *config.Config {
	t.Helper()

	path, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(path, "go.mod")); err == nil {
			break
		}
		if path == filepath.Dir(path) {
			t.Fatalf("could not find project root with go.mod")
		}
		path = filepath.Dir(path)
	}

	env, err := godotenv.Read(filepath.Join(path, ".env.test"))
	if err != nil {
		t.Fatalf("failed to load .env.test file: %v", err)
	}
	for key, value := range overrides {
		env[key] = value
	}

	return config.FromLookup(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
}
