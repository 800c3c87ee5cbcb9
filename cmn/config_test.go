package cmn

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig should validate, got %v", err)
	}
}

func TestValidateRejectsOutOfRangePort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an out-of-range port")
	}
}

func TestValidateRequiresCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AccessKeyID = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error when AccessKeyID is empty")
	}
}

func TestValidateRequiresBucketPreconfigName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConfigureBuckets = []BucketPreconfig{{Name: ""}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an unnamed bucket preconfig")
	}
}

func TestLoadConfigReadsAndValidatesJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body, _ := json.Marshal(map[string]interface{}{
		"port":            9000,
		"accessKeyId":     "AKID",
		"secretAccessKey": "SECRET",
		"directory":       dir,
	})
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != 9000 || cfg.AccessKeyID != "AKID" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfigRejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}
