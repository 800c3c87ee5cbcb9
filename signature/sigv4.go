package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/randonia/s3rver-go/cmn"
)

const unsignedPayload = "UNSIGNED-PAYLOAD"

type sigV4Params struct {
	AccessKey     string
	Date          string // YYYYMMDD
	Region        string
	Service       string
	SignedHeaders []string
	Signature     string
}

func parseSigV4HeaderAuth(auth string) (sigV4Params, bool) {
	auth = strings.TrimPrefix(auth, "AWS4-HMAC-SHA256 ")
	var p sigV4Params
	for _, field := range strings.Split(auth, ",") {
		field = strings.TrimSpace(field)
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "Credential":
			cred := strings.Split(kv[1], "/")
			if len(cred) != 5 {
				return p, false
			}
			p.AccessKey, p.Date, p.Region, p.Service = cred[0], cred[1], cred[2], cred[3]
		case "SignedHeaders":
			p.SignedHeaders = strings.Split(kv[1], ";")
		case "Signature":
			p.Signature = kv[1]
		}
	}
	if p.AccessKey == "" || p.Date == "" || p.Region == "" || p.Service == "" ||
		len(p.SignedHeaders) == 0 || p.Signature == "" {
		return p, false
	}
	return p, true
}

func canonicalQueryString(r *http.Request, exclude map[string]bool) string {
	q := r.URL.Query()
	var keys []string
	for k := range q {
		if exclude[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		for _, v := range q[k] {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}

func canonicalHeaders(r *http.Request, signed []string) (string, string) {
	sorted := append([]string(nil), signed...)
	sort.Strings(sorted)
	var sb strings.Builder
	for _, h := range sorted {
		var v string
		if strings.EqualFold(h, "host") {
			v = r.Host
		} else {
			v = strings.Join(r.Header.Values(http.CanonicalHeaderKey(h)), ",")
		}
		sb.WriteString(strings.ToLower(h))
		sb.WriteByte(':')
		sb.WriteString(strings.TrimSpace(v))
		sb.WriteByte('\n')
	}
	return sb.String(), strings.Join(sorted, ";")
}

func canonicalRequest(r *http.Request, signed []string, payloadHash string, exclude map[string]bool) string {
	headerBlock, signedHeaderList := canonicalHeaders(r, signed)
	return strings.Join([]string{
		r.Method,
		canonicalURI(r.URL.Path),
		canonicalQueryString(r, exclude),
		headerBlock,
		signedHeaderList,
		payloadHash,
	}, "\n")
}

func canonicalURI(p string) string {
	if p == "" {
		return "/"
	}
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

func sigV4SigningKey(secret, date, region, service string) []byte {
	h := func(key []byte, data string) []byte {
		mac := hmac.New(sha256.New, key)
		mac.Write([]byte(data))
		return mac.Sum(nil)
	}
	kDate := h([]byte("AWS4"+secret), date)
	kRegion := h(kDate, region)
	kService := h(kRegion, service)
	return h(kService, "aws4_request")
}

func sigV4StringToSign(amzDate, scope, canonicalReqHash string) string {
	return strings.Join([]string{"AWS4-HMAC-SHA256", amzDate, scope, canonicalReqHash}, "\n")
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func verifySigV4Header(r *http.Request, creds Credentials, allowMismatched bool, now time.Time) (Result, *cmn.ErrS3) {
	p, ok := parseSigV4HeaderAuth(r.Header.Get("Authorization"))
	if !ok {
		return Result{}, cmn.NewErrS3(cmn.CodeAuthHeaderMalformed, r.URL.Path,
			"The authorization header is malformed; the Credential is mal-formed; expecting \"<YOUR-AKID>/YYYYMMDD/REGION/SERVICE/aws4_request\"")
	}
	if skErr := checkSkew(requestDate(r), now); skErr != nil {
		return Result{}, skErr
	}

	amzDate := r.Header.Get("X-Amz-Date")
	if amzDate == "" {
		amzDate = r.Header.Get("Date")
	}
	payloadHash := r.Header.Get("X-Amz-Content-Sha256")
	if payloadHash == "" {
		payloadHash = unsignedPayload
	}

	creq := canonicalRequest(r, p.SignedHeaders, payloadHash, nil)
	scope := p.Date + "/" + p.Region + "/" + p.Service + "/aws4_request"
	sts := sigV4StringToSign(amzDate, scope, hashHex(creq))
	key := sigV4SigningKey(creds.SecretAccessKey, p.Date, p.Region, p.Service)
	want := hex.EncodeToString(hmacSHA256(key, sts))

	if want != p.Signature && !allowMismatched {
		return Result{}, cmn.NewErrS3(cmn.CodeSignatureDoesNotMatch, r.URL.Path,
			"The request signature we calculated does not match the signature you provided")
	}
	return Result{Scheme: SchemeV4, Signed: true}, nil
}

var sigV4QueryExclude = map[string]bool{"X-Amz-Signature": true}

func verifySigV4Query(r *http.Request, creds Credentials, allowMismatched bool, now time.Time) (Result, *cmn.ErrS3) {
	q := r.URL.Query()
	algo := q.Get("X-Amz-Algorithm")
	cred := q.Get("X-Amz-Credential")
	signedHeaders := q.Get("X-Amz-SignedHeaders")
	sig := q.Get("X-Amz-Signature")
	amzDate := q.Get("X-Amz-Date")
	expiresStr := q.Get("X-Amz-Expires")

	if algo == "" || cred == "" || signedHeaders == "" || sig == "" || amzDate == "" || expiresStr == "" {
		return Result{}, cmn.NewErrS3(cmn.CodeAuthQueryParamsError, r.URL.Path,
			"Query-string authentication requires the X-Amz-Algorithm, X-Amz-Credential, "+
				"X-Amz-SignedHeaders, X-Amz-Signature, X-Amz-Date and X-Amz-Expires parameters")
	}
	credParts := strings.Split(cred, "/")
	if len(credParts) != 5 {
		return Result{}, cmn.NewErrS3(cmn.CodeAuthQueryParamsError, r.URL.Path, "malformed X-Amz-Credential")
	}
	date, region, service := credParts[1], credParts[2], credParts[3]

	expires, err := strconv.Atoi(expiresStr)
	if err != nil {
		return Result{}, cmn.NewErrS3(cmn.CodeAuthQueryParamsError, r.URL.Path, "malformed X-Amz-Expires")
	}
	signedAt, perr := time.Parse("20060102T150405Z", amzDate)
	if perr == nil && now.After(signedAt.Add(time.Duration(expires)*time.Second)) {
		return Result{}, cmn.NewErrS3(cmn.CodeAccessDenied, r.URL.Path, "Request has expired")
	}
	if skErr := checkSkew(amzDate, now); skErr != nil {
		return Result{}, skErr
	}

	creq := canonicalRequest(r, strings.Split(signedHeaders, ";"), unsignedPayload, sigV4QueryExclude)
	scope := date + "/" + region + "/" + service + "/aws4_request"
	sts := sigV4StringToSign(amzDate, scope, hashHex(creq))
	key := sigV4SigningKey(creds.SecretAccessKey, date, region, service)
	want := hex.EncodeToString(hmacSHA256(key, sts))

	if want != sig && !allowMismatched {
		return Result{}, cmn.NewErrS3(cmn.CodeSignatureDoesNotMatch, r.URL.Path,
			"The request signature we calculated does not match the signature you provided")
	}
	return Result{Scheme: SchemeV4, Signed: true}, nil
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
