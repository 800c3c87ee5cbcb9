package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/randonia/s3rver-go/cmn"
)

// sigv2Subresources is the fixed whitelist of query parameters that
// participate in SigV2's CanonicalizedResource (spec.md §4.3).
var sigv2Subresources = map[string]bool{
	"acl": true, "lifecycle": true, "location": true, "logging": true,
	"notification": true, "partNumber": true, "policy": true,
	"requestPayment": true, "torrent": true, "uploadId": true,
	"uploads": true, "versionId": true, "versioning": true,
	"website": true, "cors": true, "tagging": true, "restore": true,
	"response-content-type": true, "response-content-language": true,
	"response-expires": true, "response-cache-control": true,
	"response-content-disposition": true, "response-content-encoding": true,
}

func canonicalizedResourceV2(r *http.Request) string {
	var sb strings.Builder
	sb.WriteString(r.URL.Path)

	q := r.URL.Query()
	var keys []string
	for k := range q {
		if sigv2Subresources[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i == 0 {
			sb.WriteByte('?')
		} else {
			sb.WriteByte('&')
		}
		v := q.Get(k)
		if v == "" {
			sb.WriteString(k)
		} else {
			sb.WriteString(k + "=" + v)
		}
	}
	return sb.String()
}

func canonicalizedAmzHeadersV2(r *http.Request) string {
	var keys []string
	for k := range r.Header {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "x-amz-") {
			keys = append(keys, lk)
		}
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		vals := r.Header.Values(textCanon(k))
		sb.WriteString(k)
		sb.WriteByte(':')
		sb.WriteString(strings.Join(vals, ","))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// textCanon restores the canonical MIME header form so Header.Values
// can look it up (net/http stores headers with canonical casing).
func textCanon(lower string) string {
	return http.CanonicalHeaderKey(lower)
}

func stringToSignV2(r *http.Request, dateOrExpires string) string {
	var sb strings.Builder
	sb.WriteString(r.Method)
	sb.WriteByte('\n')
	sb.WriteString(r.Header.Get("Content-MD5"))
	sb.WriteByte('\n')
	sb.WriteString(r.Header.Get("Content-Type"))
	sb.WriteByte('\n')
	sb.WriteString(dateOrExpires)
	sb.WriteByte('\n')
	sb.WriteString(canonicalizedAmzHeadersV2(r))
	sb.WriteString(canonicalizedResourceV2(r))
	return sb.String()
}

func signV2(secret, stringToSign string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func verifySigV2Header(r *http.Request, creds Credentials, allowMismatched bool, now time.Time) (Result, *cmn.ErrS3) {
	auth := strings.TrimPrefix(r.Header.Get("Authorization"), "AWS ")
	parts := strings.SplitN(auth, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Result{}, cmn.NewErrS3(cmn.CodeInvalidArgument, r.URL.Path, "malformed Authorization header")
	}
	accessKey, sig := parts[0], parts[1]

	if skErr := checkSkew(requestDate(r), now); skErr != nil {
		return Result{}, skErr
	}

	sts := stringToSignV2(r, r.Header.Get("Date"))
	if want := signV2(creds.SecretAccessKey, sts); want != sig && accessKey != "" {
		if !allowMismatched {
			return Result{}, cmn.NewErrS3(cmn.CodeSignatureDoesNotMatch, r.URL.Path,
				"The request signature we calculated does not match the signature you provided")
		}
	}
	return Result{Scheme: SchemeV2, Signed: true}, nil
}

func verifySigV2Query(r *http.Request, creds Credentials, allowMismatched bool, now time.Time) (Result, *cmn.ErrS3) {
	q := r.URL.Query()
	accessKey := q.Get("AWSAccessKeyId")
	sig := q.Get("Signature")
	expires := q.Get("Expires")
	if accessKey == "" || sig == "" {
		return Result{}, cmn.NewErrS3(cmn.CodeInvalidArgument, r.URL.Path, "missing AWSAccessKeyId/Signature")
	}
	if expires != "" {
		exp, err := strconv.ParseInt(expires, 10, 64)
		if err != nil {
			return Result{}, cmn.NewErrS3(cmn.CodeInvalidArgument, r.URL.Path, "malformed Expires")
		}
		if now.After(time.Unix(exp, 0)) {
			return Result{}, cmn.NewErrS3(cmn.CodeAccessDenied, r.URL.Path, "Request has expired")
		}
	}

	sts := stringToSignV2(r, expires)
	sig, _ = url.QueryUnescape(sig)
	if want := signV2(creds.SecretAccessKey, sts); want != sig {
		if !allowMismatched {
			return Result{}, cmn.NewErrS3(cmn.CodeSignatureDoesNotMatch, r.URL.Path,
				"The request signature we calculated does not match the signature you provided")
		}
	}
	return Result{Scheme: SchemeV2, Signed: true}, nil
}
