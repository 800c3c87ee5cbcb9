// Package cors implements the CORS rule matcher and response augmenter
// (spec.md §4.4, component C4): parsing and validating bucket CORS
// configuration, matching simple and preflight requests against it,
// and shaping the resulting response headers.
package cors

import (
	"encoding/xml"
	"net/http"
	"strconv"
	"strings"

	"github.com/randonia/s3rver-go/cmn"
)

// Rule is one <CORSRule> (spec.md §3 "CORSConfiguration").
type Rule struct {
	AllowedMethods []string `xml:"AllowedMethod"`
	AllowedOrigins []string `xml:"AllowedOrigin"`
	AllowedHeaders []string `xml:"AllowedHeader"`
	ExposeHeaders  []string `xml:"ExposeHeader"`
	MaxAgeSeconds  int      `xml:"MaxAgeSeconds,omitempty"`
}

// Config is an ordered list of rules; first match wins (spec.md §4.4).
type Config struct {
	XMLName xml.Name `xml:"CORSConfiguration"`
	Rules   []Rule   `xml:"CORSRule"`
}

var allowedMethodSet = map[string]bool{
	http.MethodGet: true, http.MethodPut: true, http.MethodPost: true,
	http.MethodDelete: true, http.MethodHead: true,
}

func countStars(s string) int {
	return strings.Count(s, "*")
}

// Parse validates and decodes raw CORS XML (spec.md §4.4 "On load").
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := xml.Unmarshal(raw, &cfg); err != nil {
		return nil, cmn.NewErrS3(cmn.CodeMalformedXML, "", "The XML you provided was not well-formed")
	}
	if len(cfg.Rules) == 0 {
		return nil, cmn.NewErrS3(cmn.CodeMalformedXML, "", "CORSConfiguration must contain at least one CORSRule")
	}
	for _, rule := range cfg.Rules {
		if len(rule.AllowedMethods) == 0 || len(rule.AllowedOrigins) == 0 {
			return nil, cmn.NewErrS3(cmn.CodeMalformedXML, "",
				"CORSRule must specify at least one AllowedMethod and AllowedOrigin")
		}
		for _, m := range rule.AllowedMethods {
			if !allowedMethodSet[m] {
				return nil, cmn.NewErrS3(cmn.CodeMalformedXML, "",
					"Found unsupported HTTP method in CORS config.")
			}
		}
		for _, o := range rule.AllowedOrigins {
			if countStars(o) > 1 {
				return nil, cmn.NewErrS3(cmn.CodeMalformedXML, "",
					"AllowedOrigin %q may contain at most one '*'", o)
			}
		}
		for _, h := range rule.AllowedHeaders {
			if countStars(h) > 1 {
				return nil, cmn.NewErrS3(cmn.CodeMalformedXML, "",
					"AllowedHeader %q may contain at most one '*'", h)
			}
		}
	}
	return &cfg, nil
}

// globMatch implements spec.md §4.4's single-wildcard glob: at most one
// '*' in the pattern, matching any substring (including empty).
func globMatch(pattern, value string) bool {
	idx := strings.IndexByte(pattern, '*')
	if idx < 0 {
		return strings.EqualFold(pattern, value)
	}
	prefix, suffix := pattern[:idx], pattern[idx+1:]
	if len(value) < len(prefix)+len(suffix) {
		return false
	}
	return strings.EqualFold(value[:len(prefix)], prefix) &&
		strings.EqualFold(value[len(value)-len(suffix):], suffix)
}

func methodAllowed(rule Rule, method string) bool {
	for _, m := range rule.AllowedMethods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

func originAllowed(rule Rule, origin string) (string, bool) {
	for _, o := range rule.AllowedOrigins {
		if globMatch(o, origin) {
			return o, true
		}
	}
	return "", false
}

func headersAllowed(rule Rule, requested []string) bool {
	for _, rh := range requested {
		rh = strings.TrimSpace(rh)
		if rh == "" {
			continue
		}
		ok := false
		for _, ah := range rule.AllowedHeaders {
			if globMatch(ah, rh) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Match implements spec.md §4.4's "Match algorithm": first rule (in
// document order) whose origin glob, method list, and requested-header
// set all match. requestedHeaders may be nil for a simple request.
func Match(cfg *Config, origin, method string, requestedHeaders []string) (Rule, string, bool) {
	if cfg == nil {
		return Rule{}, "", false
	}
	for _, rule := range cfg.Rules {
		originPattern, ok := originAllowed(rule, origin)
		if !ok || !methodAllowed(rule, method) {
			continue
		}
		if !headersAllowed(rule, requestedHeaders) {
			continue
		}
		return rule, originPattern, true
	}
	return Rule{}, "", false
}

// ApplySimple augments a non-preflight response (spec.md §4.4 "On a
// simple request"). It is a no-op when no rule matches.
func ApplySimple(w http.ResponseWriter, cfg *Config, origin, method string, statusIsPartial bool) {
	rule, originPattern, ok := Match(cfg, origin, method, nil)
	if !ok {
		return
	}
	h := w.Header()
	if originPattern == "*" {
		h.Set("Access-Control-Allow-Origin", "*")
	} else {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if len(rule.ExposeHeaders) > 0 {
		expose := rule.ExposeHeaders
		if statusIsPartial {
			expose = append(append([]string{}, expose...), "Accept-Ranges", "Content-Range")
		}
		h.Set("Access-Control-Expose-Headers", strings.Join(expose, ", "))
	} else if statusIsPartial {
		h.Set("Access-Control-Expose-Headers", "Accept-Ranges, Content-Range")
	}
}

// HandlePreflight implements spec.md §4.4 "On an OPTIONS preflight".
// It writes the full response and returns whether a rule matched.
func HandlePreflight(w http.ResponseWriter, r *http.Request, cfg *Config) bool {
	origin := r.Header.Get("Origin")
	method := r.Header.Get("Access-Control-Request-Method")
	if origin == "" || method == "" {
		return false
	}
	var requested []string
	if rh := r.Header.Get("Access-Control-Request-Headers"); rh != "" {
		requested = strings.Split(rh, ",")
	}
	rule, originPattern, ok := Match(cfg, origin, method, requested)
	if !ok {
		return false
	}
	h := w.Header()
	if originPattern == "*" {
		h.Set("Access-Control-Allow-Origin", "*")
	} else {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	h.Set("Access-Control-Allow-Methods", strings.Join(rule.AllowedMethods, ", "))
	if len(requested) > 0 {
		h.Set("Access-Control-Allow-Headers", strings.ToLower(strings.Join(requested, ", ")))
	}
	if rule.MaxAgeSeconds > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(rule.MaxAgeSeconds))
	}
	w.WriteHeader(http.StatusOK)
	return true
}
