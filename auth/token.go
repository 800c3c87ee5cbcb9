// Package auth issues and verifies the short-lived JWT this server
// accepts for the admin endpoints SPEC_FULL.md adds alongside the
// ordinary S3 surface (GET /-/status, GET /-/metrics), grounded on
// AIStore's authn package (token.go) which signs/verifies session
// tokens the same way -- HMAC-signed JWT claims checked against one
// configured secret, not a multi-tenant keystore.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/randonia/s3rver-go/cmn"
)

// Claims is the payload of an admin session token.
type Claims struct {
	jwt.RegisteredClaims
	AccessKeyID string `json:"access_key_id"`
}

// Issuer mints and verifies admin tokens against a single secret,
// mirroring the single-credential-pair model signature.Credentials
// uses for the ordinary S3 surface.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue mints a token for accessKeyID, valid for the issuer's TTL.
func (i *Issuer) Issue(accessKeyID string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		AccessKeyID: accessKeyID,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(i.secret)
}

// Verify parses and validates a bearer token, returning its claims.
func (i *Issuer) Verify(token string) (*Claims, *cmn.ErrS3) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, cmn.NewErrS3(cmn.CodeAccessDenied, "/-/status", "invalid or expired admin token")
	}
	return claims, nil
}
