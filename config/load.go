package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WriteS3Credentials renders creds as YAML to path, creating the parent
// directory with 0700 and the file itself with 0600, since the file
// carries secret access/secret keys.
func WriteS3Credentials(path string, creds S3Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: failed to create config directory for %s: %w", path, err)
	}
	if err := os.Chmod(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: failed to restrict permissions on %s: %w", filepath.Dir(path), err)
	}

	b, err := yaml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("config: failed to marshal S3 credentials: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("config: failed to write S3 credentials to %s: %w", path, err)
	}
	return nil
}

// LoadS3Credentials reads and parses the S3 credentials file at path.
func LoadS3Credentials(path string) (S3Credentials, error) {
	var creds S3Credentials
	b, err := os.ReadFile(path)
	if err != nil {
		return creds, fmt.Errorf("config: failed to read S3 credentials from %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &creds); err != nil {
		return creds, fmt.Errorf("config: failed to parse S3 credentials from %s: %w", path, err)
	}
	return creds, nil
}

// LoadDaemonConfig reads a daemon config file at path, falling back to
// Defaults() for any field the file does not set. A missing file is not
// an error: it returns Defaults() unchanged.
func LoadDaemonConfig(path string) (DaemonConfig, error) {
	cfg := Defaults()

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: failed to read daemon config from %s: %w", path, err)
	}

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: failed to parse daemon config from %s: %w", path, err)
	}
	return cfg, nil
}
