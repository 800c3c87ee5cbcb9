// Package cmn -- configuration. Shaped after AIStore's cmn.Config
// (encoding/json via json-iterator, a Validate() error on every nested
// struct), trimmed to the handful of options this server's external
// collaborator (the CLI) is expected to recognize -- see spec.md §6.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Validator is the Validate() error contract AIStore's cmn.Config uses.
// Config is its only implementer here: Config.Validate checks the
// nested BucketPreconfig entries inline and returns the first failure.
type Validator interface {
	Validate() error
}

type (
	// BucketPreconfig preloads a bucket and its configs at startup
	// (spec.md §6, "configureBuckets").
	BucketPreconfig struct {
		Name    string   `json:"name"`
		Configs [][]byte `json:"configs"` // raw CORS/website config XML blobs
	}

	// Config is the single JSON document a deployment supplies; every
	// field corresponds 1:1 to an option named in spec.md §6.
	Config struct {
		Port                     int               `json:"port"`
		Address                  string            `json:"address"`
		ServiceEndpoint          string            `json:"serviceEndpoint"`
		Directory                string            `json:"directory"`
		Silent                   bool              `json:"silent"`
		ResetOnClose             bool              `json:"resetOnClose"`
		ConfigureBuckets         []BucketPreconfig `json:"configureBuckets"`
		AllowMismatchedSignatures bool             `json:"allowMismatchedSignatures"`
		VhostBuckets             bool              `json:"vhostBuckets"`

		// Access/secret credential pair this instance validates SigV2/
		// SigV4 against (spec.md §1: "verifying signatures against a
		// single known credential pair").
		AccessKeyID     string `json:"accessKeyId"`
		SecretAccessKey string `json:"secretAccessKey"`
	}
)

const defaultServiceEndpoint = "s3.amazonaws.com"

// DefaultConfig returns the zero-value-safe configuration a bare `go
// run` of cmd/s3rverd starts with: ephemeral port, cwd-relative
// directory, the well-known S3RVER test credential pair.
func DefaultConfig() *Config {
	return &Config{
		Port:            0,
		Address:         "0.0.0.0",
		ServiceEndpoint: defaultServiceEndpoint,
		Directory:       "./.s3rver",
		AccessKeyID:     "S3RVER",
		SecretAccessKey: "S3RVER",
	}
}

func (c *Config) Validate() error {
	if c.ServiceEndpoint == "" {
		c.ServiceEndpoint = defaultServiceEndpoint
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return fmt.Errorf("accessKeyId/secretAccessKey must both be set")
	}
	for i := range c.ConfigureBuckets {
		if c.ConfigureBuckets[i].Name == "" {
			return fmt.Errorf("configureBuckets[%d]: name is required", i)
		}
	}
	return nil
}

// LoadConfig reads and validates a JSON config file, matching the
// load-then-validate sequence AIStore's daemon.go runs over cmn.Config
// at startup. A startup validation failure is the one case spec.md §6
// asks for a non-zero exit code.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %q", path)
	}
	if err := jsonAPI.Unmarshal(b, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %q", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %q", path)
	}
	return cfg, nil
}
