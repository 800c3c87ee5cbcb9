package s3api

import (
	"net/http"
	"strings"

	"github.com/randonia/s3rver-go/auth"
	"github.com/randonia/s3rver-go/cmn"
	"github.com/randonia/s3rver-go/stats"
)

// Admin holds the optional JWT-gated status/metrics surface SPEC_FULL.md
// adds (section C "MODULES" supplements to C1/C3): neither endpoint is
// part of the S3 wire protocol, so they live outside the bucket/object
// dispatch entirely and are wired in main() ahead of Server.ServeHTTP.
type Admin struct {
	Issuer  *auth.Issuer
	Metrics *stats.Collector
}

// StatusHandler serves GET /-/status: requires a valid admin bearer
// token and reports a fixed liveness payload.
func (a *Admin) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			writeError(w, "/-/status", cmn.NewErrS3(cmn.CodeAccessDenied, "/-/status", "missing bearer token"), cmn.GenRequestID())
			return
		}
		if _, err := a.Issuer.Verify(tok); err != nil {
			writeError(w, "/-/status", err, cmn.GenRequestID())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}

// MetricsHandler serves GET /-/metrics: same JWT gate, then delegates
// to the Prometheus collector's own handler.
func (a *Admin) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			writeError(w, "/-/metrics", cmn.NewErrS3(cmn.CodeAccessDenied, "/-/metrics", "missing bearer token"), cmn.GenRequestID())
			return
		}
		if _, err := a.Issuer.Verify(tok); err != nil {
			writeError(w, "/-/metrics", err, cmn.GenRequestID())
			return
		}
		a.Metrics.Handler().ServeHTTP(w, r)
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
