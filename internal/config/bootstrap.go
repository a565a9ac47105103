package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EnsureUserConfig makes sure <dataDir>/config.yml exists and returns its
// path. A missing file is seeded from defaultPath, or from Default() when
// no usable default ships with the binary.
func EnsureUserConfig(dataDir string, defaultPath string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	userPath := filepath.Join(dataDir, "config.yml")

	_, err := os.Stat(userPath)
	if err == nil {
		return userPath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	b, from, err := seedBytes(defaultPath)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(userPath, b, 0o600); err != nil {
		return "", fmt.Errorf("seed %s: %w", userPath, err)
	}
	log.Printf("[config] seeded %s from %s", userPath, from)
	return userPath, nil
}

func seedBytes(defaultPath string) ([]byte, string, error) {
	if defaultPath != "" {
		b, err := os.ReadFile(defaultPath)
		switch {
		case err == nil:
			var parsed Config
			if yerr := yaml.Unmarshal(b, &parsed); yerr == nil {
				return b, defaultPath, nil
			}
			log.Printf("[config] %s is not valid yaml; using built-in defaults", defaultPath)
		case !errors.Is(err, os.ErrNotExist):
			return nil, "", err
		}
	}
	b, err := yaml.Marshal(Default())
	return b, "built-in defaults", err
}
