// Package website implements the static-website routing engine
// (spec.md §4.5, component C5): website configuration parsing and
// routing-rule condition matching and redirect construction, mirroring
// the resolve-then-dispatch shape of the CORS matcher in package cors.
// Index/error document serving, directory redirects and
// WebsiteRedirectLocation handling are done by package s3api.
package website

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/randonia/s3rver-go/cmn"
)

// Condition is a <RoutingRule>'s optional <Condition> (spec.md §3
// "WebsiteConfiguration").
type Condition struct {
	KeyPrefixEquals            string `xml:"KeyPrefixEquals,omitempty"`
	HttpErrorCodeReturnedEquals string `xml:"HttpErrorCodeReturnedEquals,omitempty"`
}

// Redirect is a <RoutingRule>'s <Redirect>.
type Redirect struct {
	Protocol             string `xml:"Protocol,omitempty"`
	HostName              string `xml:"HostName,omitempty"`
	ReplaceKeyPrefixWith  string `xml:"ReplaceKeyPrefixWith,omitempty"`
	ReplaceKeyWith        string `xml:"ReplaceKeyWith,omitempty"`
	HttpRedirectCode      string `xml:"HttpRedirectCode,omitempty"`
}

// RoutingRule is one entry of <RoutingRules>.
type RoutingRule struct {
	Condition *Condition `xml:"Condition,omitempty"`
	Redirect  Redirect   `xml:"Redirect"`
}

// Config is a bucket's <WebsiteConfiguration>.
type Config struct {
	XMLName             xml.Name      `xml:"WebsiteConfiguration"`
	IndexDocumentSuffix  string        `xml:"IndexDocument>Suffix"`
	ErrorDocumentKey     string        `xml:"ErrorDocument>Key,omitempty"`
	RedirectAllProtocol  string        `xml:"RedirectAllRequestsTo>Protocol,omitempty"`
	RedirectAllHostName  string        `xml:"RedirectAllRequestsTo>HostName,omitempty"`
	RoutingRules         []RoutingRule `xml:"RoutingRules>RoutingRule"`
}

// Parse validates and decodes raw website-configuration XML.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := xml.Unmarshal(raw, &cfg); err != nil {
		return nil, cmn.NewErrS3(cmn.CodeMalformedXML, "", "The XML you provided was not well-formed")
	}
	if cfg.RedirectAllHostName == "" && cfg.IndexDocumentSuffix == "" {
		return nil, cmn.NewErrS3(cmn.CodeMalformedXML, "",
			"WebsiteConfiguration must have either IndexDocument or RedirectAllRequestsTo")
	}
	for _, rule := range cfg.RoutingRules {
		if rule.Redirect.ReplaceKeyWith != "" && rule.Redirect.ReplaceKeyPrefixWith != "" {
			return nil, cmn.NewErrS3(cmn.CodeMalformedXML, "",
				"RoutingRule cannot contain both ReplaceKeyWith and ReplaceKeyPrefixWith")
		}
		if rule.Condition != nil && rule.Condition.KeyPrefixEquals == "" &&
			rule.Condition.HttpErrorCodeReturnedEquals == "" {
			return nil, cmn.NewErrS3(cmn.CodeMalformedXML, "",
				"RoutingRule Condition must specify KeyPrefixEquals or HttpErrorCodeReturnedEquals")
		}
	}
	return &cfg, nil
}

// IndexKey resolves the target key when the requested path names a
// "directory" (spec.md §4.5 step 2).
func (c *Config) IndexKey(prefix string) string {
	return prefix + c.IndexDocumentSuffix
}

// conditionMatches implements spec.md §4.5 step 4's Condition rule.
func conditionMatches(cond *Condition, key string, wouldBeStatus int) bool {
	if cond == nil {
		return true
	}
	if cond.KeyPrefixEquals != "" && !strings.HasPrefix(key, cond.KeyPrefixEquals) {
		return false
	}
	if cond.HttpErrorCodeReturnedEquals != "" {
		want := cond.HttpErrorCodeReturnedEquals
		if want != fmt.Sprintf("%d", wouldBeStatus) {
			return false
		}
	}
	return true
}

// MatchRoutingRule returns the first RoutingRule whose Condition fires
// for key and wouldBeStatus (spec.md §4.5 step 4, "first matching rule
// produces the redirect").
func (c *Config) MatchRoutingRule(key string, wouldBeStatus int) (RoutingRule, bool) {
	for _, rule := range c.RoutingRules {
		if conditionMatches(rule.Condition, key, wouldBeStatus) {
			return rule, true
		}
	}
	return RoutingRule{}, false
}

// TransformedKey applies a matched rule's key transformation (spec.md
// §4.5 step 4): ReplaceKeyWith replaces the whole key; otherwise
// ReplaceKeyPrefixWith (possibly empty) replaces the condition's
// KeyPrefixEquals prefix (possibly empty).
func TransformedKey(rule RoutingRule, key string) string {
	if rule.Redirect.ReplaceKeyWith != "" {
		return rule.Redirect.ReplaceKeyWith
	}
	prefix := ""
	if rule.Condition != nil {
		prefix = rule.Condition.KeyPrefixEquals
	}
	return rule.Redirect.ReplaceKeyPrefixWith + strings.TrimPrefix(key, prefix)
}

// RedirectStatus returns the rule's HttpRedirectCode or the spec's
// default of 301.
func RedirectStatus(rule RoutingRule) int {
	if rule.Redirect.HttpRedirectCode == "" {
		return 301
	}
	var code int
	fmt.Sscanf(rule.Redirect.HttpRedirectCode, "%d", &code)
	if code == 0 {
		return 301
	}
	return code
}

// RedirectLocation builds the Location header value (spec.md §4.5 step
// 4): "${Protocol ?? req.protocol}://${HostName ?? req.host}/${key}".
func RedirectLocation(rule RoutingRule, reqProtocol, reqHost, transformedKey string) string {
	protocol := rule.Redirect.Protocol
	if protocol == "" {
		protocol = reqProtocol
	}
	host := rule.Redirect.HostName
	if host == "" {
		host = reqHost
	}
	return protocol + "://" + host + "/" + transformedKey
}

const DefaultNotFoundHTML = `<html><head><title>404 Not Found</title></head>` +
	`<body><h1>404 Not Found</h1></body></html>`
