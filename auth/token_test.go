package auth

import (
	"testing"
	"time"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	iss := NewIssuer("topsecret", time.Hour)
	tok, err := iss.Issue("S3RVER")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, verr := iss.Verify(tok)
	if verr != nil {
		t.Fatalf("Verify: %v", verr)
	}
	if claims.AccessKeyID != "S3RVER" {
		t.Fatalf("AccessKeyID = %q, want S3RVER", claims.AccessKeyID)
	}
}

func TestNewIssuerDefaultsZeroTTL(t *testing.T) {
	iss := NewIssuer("topsecret", 0)
	if iss.ttl != time.Hour {
		t.Fatalf("ttl = %v, want the 1h default for a non-positive TTL", iss.ttl)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	iss := NewIssuer("topsecret", time.Hour)
	iss.ttl = -time.Minute // NewIssuer itself replaces a non-positive TTL with 1h
	tok, err := iss.Issue("S3RVER")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, verr := iss.Verify(tok); verr == nil {
		t.Fatal("expected an already-expired token to be rejected")
	}
}

func TestVerifyRejectsTokenSignedWithDifferentSecret(t *testing.T) {
	signer := NewIssuer("secret-a", time.Hour)
	tok, err := signer.Issue("S3RVER")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	verifier := NewIssuer("secret-b", time.Hour)
	if _, verr := verifier.Verify(tok); verr == nil {
		t.Fatal("expected a token signed with a different secret to be rejected")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	iss := NewIssuer("topsecret", time.Hour)
	if _, verr := iss.Verify("not.a.jwt"); verr == nil {
		t.Fatal("expected a malformed token string to be rejected")
	}
}
