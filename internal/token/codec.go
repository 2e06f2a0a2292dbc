// Package token implements the bearer credential codec and the header
// extraction helpers. The wire format is three dot-separated base64url
// segments (header.payload.signature) signed with HMAC-SHA256.
package token

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/quartermaster-erp/quartermaster/internal/shared"
)

// Claim keys injected or read by the codec.
const (
	ClaimUserID    = "user_id"
	ClaimUsername  = "username"
	ClaimEmail     = "email"
	ClaimIssuedAt  = "iat"
	ClaimExpiry    = "exp"
	ClaimNotBefore = "nbf"
)

// DefaultTTL is the token lifetime applied when none is configured.
const DefaultTTL = 24 * time.Hour

// Claims holds the token payload. Integer values decode as json.Number so
// identity fields survive a round trip without float drift.
type Claims map[string]any

// Int64 reads an integer claim.
func (c Claims) Int64(key string) (int64, bool) {
	switch v := c[key].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// String reads a string claim.
func (c Claims) String(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

type header struct {
	Typ string `json:"typ"`
	Alg string `json:"alg"`
}

// Codec creates, verifies and refreshes bearer tokens. It is pure and
// stateless; the clock is injectable for tests.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec constructs a Codec with the given signing secret and lifetime.
// The lifetime is taken as-is, including zero and negative values; callers
// wanting the standard lifetime pass DefaultTTL.
func NewCodec(secret string, ttl time.Duration) *Codec {
	return &Codec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Create serializes the claims, injects iat/exp/nbf and signs the result.
// The input map is not mutated.
func (c *Codec) Create(claims Claims) (string, error) {
	now := c.now().Unix()
	payload := make(map[string]any, len(claims)+3)
	for k, v := range claims {
		payload[k] = v
	}
	payload[ClaimIssuedAt] = now
	payload[ClaimExpiry] = now + int64(c.ttl/time.Second)
	payload[ClaimNotBefore] = now

	headerJSON, err := json.Marshal(header{Typ: "JWT", Alg: "HS256"})
	if err != nil {
		return "", err
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	encHeader := base64.RawURLEncoding.EncodeToString(headerJSON)
	encPayload := base64.RawURLEncoding.EncodeToString(payloadJSON)
	signed := encHeader + "." + encPayload
	signature := c.sign(signed)

	return signed + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

// Verify checks the signature and validity window and returns the decoded
// claims. The signature comparison is constant time.
func (c *Codec) Verify(tok string) (Claims, error) {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return nil, shared.ErrMalformedToken
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, shared.ErrMalformedToken
	}
	expected := c.sign(parts[0] + "." + parts[1])
	if !hmac.Equal(signature, expected) {
		return nil, shared.ErrInvalidSignature
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, shared.ErrMalformedToken
	}
	claims := Claims{}
	dec := json.NewDecoder(bytes.NewReader(payloadJSON))
	dec.UseNumber()
	if err := dec.Decode(&claims); err != nil {
		return nil, shared.ErrMalformedToken
	}

	now := c.now().Unix()
	exp, ok := claims.Int64(ClaimExpiry)
	if !ok {
		return nil, shared.ErrMalformedToken
	}
	if exp < now {
		return nil, shared.ErrTokenExpired
	}
	if nbf, ok := claims.Int64(ClaimNotBefore); ok && nbf > now {
		return nil, shared.ErrTokenNotYetValid
	}
	return claims, nil
}

// Refresh verifies the input token and re-signs its identity claims with
// fresh timestamps. Any still-valid token may be refreshed; the old token
// stays independently valid until its own expiry.
func (c *Codec) Refresh(tok string) (string, error) {
	claims, err := c.Verify(tok)
	if err != nil {
		return "", err
	}
	delete(claims, ClaimIssuedAt)
	delete(claims, ClaimExpiry)
	delete(claims, ClaimNotBefore)
	return c.Create(claims)
}

// TTL exposes the configured token lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

func (c *Codec) sign(data string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
