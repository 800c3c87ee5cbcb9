package s3api

import (
	"net"
	"net/http"
	"strings"
)

// Addressing holds the configuration the router's addressing
// resolution (spec.md §4.6 step 2) needs: the service endpoint used
// for virtual-hosted-style requests, an optional mount prefix, and
// whether vhost-style addressing is enabled at all.
type Addressing struct {
	ServiceEndpoint string
	MountPrefix     string
	VhostBuckets    bool
	// CNAMEBuckets reports whether name is a bucket that exists, used to
	// recognize the CNAME / bucket-host addressing convention.
	CNAMEBuckets func(host string) bool
}

// Resolved is the (bucket, key) tuple a request resolves to, plus
// whether a configured mount prefix failed to match.
type Resolved struct {
	Bucket string
	Key    string
	// MountMismatch is true when a configured mount prefix didn't match
	// the request path; the caller should fall through in that case.
	MountMismatch bool
}

// Resolve implements spec.md §4.6 steps 1-2.
func (a Addressing) Resolve(r *http.Request) Resolved {
	path := r.URL.Path
	if a.MountPrefix != "" {
		if !strings.HasPrefix(path, a.MountPrefix) {
			return Resolved{MountMismatch: true}
		}
		path = strings.TrimPrefix(path, a.MountPrefix)
	}
	path = strings.TrimPrefix(path, "/")

	host := hostOnly(r.Host)

	if a.VhostBuckets && a.ServiceEndpoint != "" {
		suffix := "." + a.ServiceEndpoint
		if strings.HasSuffix(host, suffix) {
			bucket := strings.TrimSuffix(host, suffix)
			if bucket != "" && !strings.Contains(bucket, ".") {
				return Resolved{Bucket: bucket, Key: path}
			}
		}
	}

	if a.CNAMEBuckets != nil && host != "" && host != hostOnly(serviceHost(a.ServiceEndpoint)) && a.CNAMEBuckets(host) {
		return Resolved{Bucket: host, Key: path}
	}

	// Path-style: first path segment is the bucket.
	if path == "" {
		return Resolved{}
	}
	idx := strings.IndexByte(path, '/')
	if idx < 0 {
		return Resolved{Bucket: path}
	}
	return Resolved{Bucket: path[:idx], Key: path[idx+1:]}
}

func hostOnly(hostport string) string {
	h, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return h
}

func serviceHost(endpoint string) string {
	return endpoint
}

// IsWebsiteEndpoint reports whether the request's host (port stripped)
// contains "s3-website", as "<bucket>.s3-website-<region>.amazonaws.com"
// does. The host is the only signal: a dedicated website port is not
// recognized.
func IsWebsiteEndpoint(r *http.Request) bool {
	host := hostOnly(r.Host)
	return strings.Contains(host, "s3-website")
}
