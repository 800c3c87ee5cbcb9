// Package signature implements AWS Signature Version 2 and Version 4
// validation for both header-borne and query-string (presigned)
// signatures (spec.md §4.3, component C3). There is exactly one
// configured credential pair (spec.md §1: "verifying signatures
// against a single known credential pair"), mirroring AIStore's
// authn package, which likewise checks bearer tokens against a single
// configured signing secret rather than a multi-tenant keystore.
package signature

import (
	"net/http"
	"strings"
	"time"

	"github.com/randonia/s3rver-go/cmn"
)

// Credentials is the single access/secret pair this server validates
// every signed request against.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Scheme identifies which signature version a request carried.
type Scheme int

const (
	SchemeNone Scheme = iota
	SchemeV2
	SchemeV4
)

// MaxSkew is the maximum tolerated difference between a request's
// Date/X-Amz-Date and server time (spec.md §4.3).
const MaxSkew = 15 * time.Minute

// Result describes how (if at all) a request was authenticated.
type Result struct {
	Scheme Scheme
	Signed bool
}

// Verify inspects r for either a SigV2 or SigV4 signature (header or
// query-string form) and validates it against creds. A request that
// carries no authentication at all is not an error here -- spec.md
// §4.3 says unsigned requests are accepted for ordinary operations;
// it is the caller's job to reject unsigned requests for the specific
// features (response-header overrides) that require one.
func Verify(r *http.Request, creds Credentials, allowMismatched bool, now time.Time) (Result, *cmn.ErrS3) {
	q := r.URL.Query()

	hasHeaderAuth := r.Header.Get("Authorization") != ""
	hasQueryV2 := q.Get("AWSAccessKeyId") != "" || q.Get("Signature") != ""
	hasQueryV4 := q.Get("X-Amz-Algorithm") != "" || q.Get("X-Amz-Credential") != "" || q.Get("X-Amz-Signature") != ""

	if hasHeaderAuth && (hasQueryV2 || hasQueryV4) {
		return Result{}, cmn.NewErrS3(cmn.CodeInvalidArgument, r.URL.Path,
			"Only one auth mechanism allowed; only the X-Amz-Algorithm query "+
				"parameter, Signature query string parameter or the Authorization "+
				"header should be specified")
	}

	switch {
	case hasHeaderAuth:
		auth := r.Header.Get("Authorization")
		switch {
		case strings.HasPrefix(auth, "AWS4-HMAC-SHA256"):
			return verifySigV4Header(r, creds, allowMismatched, now)
		case strings.HasPrefix(auth, "AWS "):
			return verifySigV2Header(r, creds, allowMismatched, now)
		default:
			return Result{}, cmn.NewErrS3(cmn.CodeInvalidArgument, r.URL.Path, "unsupported Authorization scheme")
		}
	case hasQueryV4:
		return verifySigV4Query(r, creds, allowMismatched, now)
	case hasQueryV2:
		return verifySigV2Query(r, creds, allowMismatched, now)
	default:
		return Result{Scheme: SchemeNone, Signed: false}, nil
	}
}

func checkSkew(headerDate string, now time.Time) *cmn.ErrS3 {
	if headerDate == "" {
		return nil
	}
	var t time.Time
	var err error
	if strings.HasSuffix(headerDate, "Z") && len(headerDate) == 16 {
		t, err = time.Parse("20060102T150405Z", headerDate)
	} else {
		t, err = time.Parse(time.RFC1123, headerDate)
		if err != nil {
			t, err = time.Parse(time.RFC1123Z, headerDate)
		}
	}
	if err != nil {
		return nil // unparsable dates are left to signature mismatch, not skew
	}
	diff := now.Sub(t)
	if diff < 0 {
		diff = -diff
	}
	if diff > MaxSkew {
		return cmn.NewErrS3(cmn.CodeRequestTimeTooSkewed, "", "The difference between the request time and the "+
			"current time is too large")
	}
	return nil
}

func requestDate(r *http.Request) string {
	if d := r.Header.Get("X-Amz-Date"); d != "" {
		return d
	}
	return r.Header.Get("Date")
}
