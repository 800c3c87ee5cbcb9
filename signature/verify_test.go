package signature

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	awscreds "github.com/aws/aws-sdk-go/aws/credentials"
	v4 "github.com/aws/aws-sdk-go/aws/signer/v4"

	"github.com/randonia/s3rver-go/cmn"
)

var testCreds = Credentials{AccessKeyID: "AKIDTEST", SecretAccessKey: "secret1234"}

func signWithSDK(t *testing.T, req *http.Request, body []byte, when time.Time) {
	t.Helper()
	signer := v4.NewSigner(awscreds.NewStaticCredentials(testCreds.AccessKeyID, testCreds.SecretAccessKey, ""))
	if _, err := signer.Sign(req, bytes.NewReader(body), "s3", "us-east-1", when); err != nil {
		t.Fatalf("aws-sdk-go signer.Sign: %v", err)
	}
}

func TestVerifySigV4HeaderAgainstRealSigner(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	body := []byte("hello")
	req := httptest.NewRequest(http.MethodPut, "http://example.com/mybucket/mykey", bytes.NewReader(body))
	req.Host = "example.com"
	signWithSDK(t, req, body, now)

	res, err := Verify(req, testCreds, false, now)
	if err != nil {
		t.Fatalf("Verify rejected a request signed by the real SDK signer: %v", err)
	}
	if !res.Signed || res.Scheme != SchemeV4 {
		t.Fatalf("expected a signed SigV4 result, got %+v", res)
	}
}

func TestVerifySigV4HeaderRejectsTamperedSignature(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	body := []byte("hello")
	req := httptest.NewRequest(http.MethodPut, "http://example.com/mybucket/mykey", bytes.NewReader(body))
	req.Host = "example.com"
	signWithSDK(t, req, body, now)

	req.URL.Path = "/mybucket/a-different-key" // tamper after signing

	_, err := Verify(req, testCreds, false, now)
	es, ok := err.(*cmn.ErrS3)
	if !ok || es.Code != cmn.CodeSignatureDoesNotMatch {
		t.Fatalf("expected SignatureDoesNotMatch, got %v", err)
	}
}

func TestVerifyMalformedAuthorizationHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/b", nil)
	req.Header.Set("Authorization", "AWS4-HMAC-SHA256 Credential=not-enough-parts")
	_, err := Verify(req, testCreds, false, time.Now())
	es, ok := err.(*cmn.ErrS3)
	if !ok || es.Code != cmn.CodeAuthHeaderMalformed {
		t.Fatalf("expected AuthorizationHeaderMalformed, got %v", err)
	}
}

func TestVerifyUnsignedRequestIsNotAnError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/b", nil)
	res, err := Verify(req, testCreds, false, time.Now())
	if err != nil {
		t.Fatalf("unsigned requests must not error: %v", err)
	}
	if res.Signed {
		t.Fatal("expected Signed=false for a request with no authentication at all")
	}
}

func TestVerifyRejectsBothHeaderAndQueryAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/b?X-Amz-Signature=x&X-Amz-Algorithm=AWS4-HMAC-SHA256", nil)
	req.Header.Set("Authorization", "AWS4-HMAC-SHA256 Credential=AKIDTEST/20240315/us-east-1/s3/aws4_request,SignedHeaders=host,Signature=deadbeef")
	_, err := Verify(req, testCreds, false, time.Now())
	es, ok := err.(*cmn.ErrS3)
	if !ok || es.Code != cmn.CodeInvalidArgument {
		t.Fatalf("expected InvalidArgument for dual auth mechanisms, got %v", err)
	}
}

func TestVerifyRejectsSkewedClock(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/b", nil)
	signed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	body := []byte(nil)
	signWithSDK(t, req, body, signed)

	farFuture := signed.Add(2 * time.Hour)
	_, err := Verify(req, testCreds, false, farFuture)
	es, ok := err.(*cmn.ErrS3)
	if !ok || es.Code != cmn.CodeRequestTimeTooSkewed {
		t.Fatalf("expected RequestTimeTooSkewed, got %v", err)
	}
}
