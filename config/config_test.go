package config

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestS3CredentialsValid(t *testing.T) {
	valid := S3Credentials{Endpoint: "http://s3.local", AccessKey: "AK", SecretKey: "SK"}
	if !valid.Valid() {
		t.Fatal("expected credentials with endpoint/access/secret to be valid")
	}

	missing := S3Credentials{Endpoint: "http://s3.local"}
	if missing.Valid() {
		t.Fatal("expected credentials missing keys to be invalid")
	}
}

func TestDurationUnmarshalYAML(t *testing.T) {
	yamlDoc := []byte("poll_period: 30s\nhttp_port: 9090\n")
	cfg := Defaults()
	if err := yaml.Unmarshal(yamlDoc, &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.PollPeriod.Duration != 30*time.Second {
		t.Fatalf("PollPeriod = %v, want 30s", cfg.PollPeriod.Duration)
	}
	if cfg.HTTPPort != 9090 {
		t.Fatalf("HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
}

func TestPersistenceEnabledUnmarshalYAML(t *testing.T) {
	cfg := Defaults()
	if err := yaml.Unmarshal([]byte("persistence_enabled: false\n"), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.PersistenceEnabled {
		t.Fatal("expected persistence_enabled: false to override the default")
	}
}

func TestWriteLoadS3CredentialsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "s3_config.yaml")
	want := S3Credentials{
		Endpoint:  "http://s3.local:9000",
		AccessKey: "AKIA",
		SecretKey: "SECRET",
		Bucket:    "loadtest",
		Region:    "us-east-1",
		Driver:    "boto3",
	}

	if err := WriteS3Credentials(path, want); err != nil {
		t.Fatalf("WriteS3Credentials: %v", err)
	}

	got, err := LoadS3Credentials(path)
	if err != nil {
		t.Fatalf("LoadS3Credentials: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("LoadS3Credentials() = %+v, want %+v", got, want)
	}
}

func TestLoadDaemonConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadDaemonConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadDaemonConfig: %v", err)
	}
	if cfg != Defaults() {
		t.Fatalf("LoadDaemonConfig() = %+v, want defaults %+v", cfg, Defaults())
	}
}
