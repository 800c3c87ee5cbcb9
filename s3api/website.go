package s3api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/randonia/s3rver-go/store"
	"github.com/randonia/s3rver-go/website"
)

// handleWebsite implements spec.md §4.5: routing for requests that
// arrived on the website endpoint, as distinguished from the ordinary
// SDK surface handled by handleBucket/handleObject.
func (s *Server) handleWebsite(w http.ResponseWriter, r *http.Request, bucket, key string) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.serveWebsiteHTML(w, http.StatusMethodNotAllowed, bucket, key)
		return
	}

	raw, err := s.Store.GetBucketConfig(bucket, store.ConfigWebsite)
	if err != nil {
		s.writeWebsiteNotFound(w)
		return
	}
	cfg, perr := website.Parse(raw)
	if perr != nil {
		s.writeWebsiteNotFound(w)
		return
	}

	protocol := "http"
	if r.TLS != nil {
		protocol = "https"
	}
	host := r.Host

	resolvedKey := key
	if resolvedKey == "" || strings.HasSuffix(resolvedKey, "/") {
		resolvedKey = cfg.IndexKey(resolvedKey)
	} else if _, herr := s.Store.HeadObject(bucket, resolvedKey); herr != nil {
		if _, ierr := s.Store.HeadObject(bucket, cfg.IndexKey(resolvedKey+"/")); ierr == nil {
			w.Header().Set("Location", "/"+resolvedKey+"/")
			w.WriteHeader(http.StatusFound)
			return
		}
	}

	meta, merr := s.Store.HeadObject(bucket, resolvedKey)
	if merr == nil {
		if meta.WebsiteRedirectLocation != "" {
			w.Header().Set("Location", meta.WebsiteRedirectLocation)
			w.WriteHeader(http.StatusMovedPermanently)
			return
		}
		rc, _, rerr := s.Store.GetObjectReader(bucket, resolvedKey)
		if rerr == nil {
			defer rc.Close()
			writeObjectHeaders(w, meta)
			w.WriteHeader(http.StatusOK)
			if r.Method == http.MethodGet {
				io.Copy(w, rc)
			}
			return
		}
	}

	wouldBeStatus := http.StatusNotFound
	if rule, ok := cfg.MatchRoutingRule(resolvedKey, wouldBeStatus); ok {
		transformed := website.TransformedKey(rule, resolvedKey)
		loc := website.RedirectLocation(rule, protocol, host, transformed)
		w.Header().Set("Location", loc)
		w.WriteHeader(website.RedirectStatus(rule))
		return
	}

	if cfg.ErrorDocumentKey != "" {
		if errMeta, eerr := s.Store.HeadObject(bucket, cfg.ErrorDocumentKey); eerr == nil {
			if errMeta.WebsiteRedirectLocation != "" {
				w.Header().Set("Location", errMeta.WebsiteRedirectLocation)
				w.WriteHeader(http.StatusMovedPermanently)
				return
			}
			rc, _, rerr := s.Store.GetObjectReader(bucket, cfg.ErrorDocumentKey)
			if rerr == nil {
				defer rc.Close()
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(wouldBeStatus)
				if r.Method == http.MethodGet {
					io.Copy(w, rc)
				}
				return
			}
		}
	}

	s.serveWebsiteHTML(w, wouldBeStatus, bucket, resolvedKey)
}

func (s *Server) writeWebsiteNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w, "<html><body><h1>404 Not Found</h1><p>NoSuchWebsiteConfiguration</p></body></html>")
}

func (s *Server) serveWebsiteHTML(w http.ResponseWriter, status int, bucket, key string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(website.DefaultNotFoundHTML))
}

