package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// DefaultDotEnvFile is loaded by LoadDotEnv when no paths are given.
const DefaultDotEnvFile = ".env"

// LoadDotEnv loads environment variables from dotenv files before Parse runs.
// Missing files are skipped. Variables already present in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{DefaultDotEnvFile}
	}

	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}

	return nil
}
