// Package main is the s3rverd executable: a thin urfave/cli wrapper
// around the s3api.Server core (spec.md §1 "Explicitly OUT of scope:
// the CLI entry point and option parsing"), in the same spirit as
// cmd/aisnodeprofile/main.go's thin wrapper around ais.Run.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/urfave/cli"

	"github.com/randonia/s3rver-go/auth"
	"github.com/randonia/s3rver-go/cmn"
	"github.com/randonia/s3rver-go/cors"
	"github.com/randonia/s3rver-go/events"
	"github.com/randonia/s3rver-go/s3api"
	"github.com/randonia/s3rver-go/signature"
	"github.com/randonia/s3rver-go/store"
	"github.com/randonia/s3rver-go/website"
)

// validatePreconfig classifies and validates one of a preconfigured
// bucket's config blobs (spec.md §6 "configureBuckets"): startup
// validation failure of a bad CORS/website document is an exit-code
// condition, not a runtime XML error.
func validatePreconfig(raw []byte) (store.ConfigKind, []byte, error) {
	switch {
	case bytes.Contains(raw, []byte("CORSConfiguration")):
		if _, err := cors.Parse(raw); err != nil {
			return "", nil, err
		}
		return store.ConfigCORS, raw, nil
	case bytes.Contains(raw, []byte("WebsiteConfiguration")):
		if _, err := website.Parse(raw); err != nil {
			return "", nil, err
		}
		return store.ConfigWebsite, raw, nil
	default:
		return store.ConfigPolicy, raw, nil
	}
}

var (
	version string
	build   string
)

func main() {
	os.Exit(run())
}

func run() int {
	app := cli.NewApp()
	app.Name = "s3rverd"
	app.Usage = "local S3-compatible object storage double"
	app.Version = fmt.Sprintf("%s (build %s)", version, build)
	app.Flags = []cli.Flag{
		cli.IntFlag{Name: "port", Value: 0, Usage: "listen port, 0 for ephemeral"},
		cli.StringFlag{Name: "address", Value: "0.0.0.0", Usage: "bind address"},
		cli.StringFlag{Name: "service-endpoint", Value: "s3.amazonaws.com", Usage: "vhost service endpoint suffix"},
		cli.StringFlag{Name: "directory", Value: "./.s3rver", Usage: "on-disk persistence root"},
		cli.BoolFlag{Name: "silent", Usage: "suppress non-error logging"},
		cli.BoolFlag{Name: "reset-on-close", Usage: "wipe all state on shutdown"},
		cli.BoolFlag{Name: "allow-mismatched-signatures", Usage: "accept requests whose computed signature does not match"},
		cli.BoolFlag{Name: "vhost-buckets", Usage: "enable virtual-hosted-style bucket addressing"},
		cli.StringFlag{Name: "config", Usage: "path to a JSON configuration file (overrides flags)"},
		cli.StringFlag{Name: "access-key-id", Value: "S3RVER"},
		cli.StringFlag{Name: "secret-access-key", Value: "S3RVER"},
	}
	app.Action = serve

	if err := app.Run(os.Args); err != nil {
		glog.Errorf("s3rverd: %v", err)
		return 1
	}
	return 0
}

func serve(c *cli.Context) error {
	cfg := cmn.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := cmn.LoadConfig(path)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg.Port = c.Int("port")
		cfg.Address = c.String("address")
		cfg.ServiceEndpoint = c.String("service-endpoint")
		cfg.Directory = c.String("directory")
		cfg.Silent = c.Bool("silent")
		cfg.ResetOnClose = c.Bool("reset-on-close")
		cfg.AllowMismatchedSignatures = c.Bool("allow-mismatched-signatures")
		cfg.VhostBuckets = c.Bool("vhost-buckets")
		cfg.AccessKeyID = c.String("access-key-id")
		cfg.SecretAccessKey = c.String("secret-access-key")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	st, err := store.New(cfg.Directory, cfg.ResetOnClose)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, pre := range cfg.ConfigureBuckets {
		if cerr := st.CreateBucket(pre.Name); cerr != nil {
			if es, ok := cerr.(*cmn.ErrS3); !ok || es.Code != cmn.CodeBucketAlreadyExists {
				return cerr
			}
		}
		for _, raw := range pre.Configs {
			kind, validated, verr := validatePreconfig(raw)
			if verr != nil {
				return verr
			}
			if perr := st.PutBucketConfig(pre.Name, kind, validated); perr != nil {
				return perr
			}
		}
	}

	bus := events.NewBus()
	addr := s3api.Addressing{
		ServiceEndpoint: cfg.ServiceEndpoint,
		VhostBuckets:    cfg.VhostBuckets,
		CNAMEBuckets: func(host string) bool {
			_, ok := st.GetBucket(host)
			return ok
		},
	}
	srv := s3api.New(st, signature.Credentials{
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	}, addr, bus)
	srv.AllowMismatched = cfg.AllowMismatchedSignatures

	admin := &s3api.Admin{
		Issuer:  auth.NewIssuer(cfg.SecretAccessKey, time.Hour),
		Metrics: srv.Metrics,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/-/status", admin.StatusHandler())
	mux.HandleFunc("/-/metrics", admin.MetricsHandler())
	mux.Handle("/", srv)

	if !cfg.Silent {
		glog.Infof("s3rverd listening on %s:%d, persisting to %s", cfg.Address, cfg.Port, cfg.Directory)
	}
	return http.ListenAndServe(fmt.Sprintf("%s:%d", cfg.Address, cfg.Port), mux)
}
