package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quartermaster-erp/quartermaster/internal/shared"
)

const testSecret = "unit-test-secret"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCreateVerifyRoundTrip(t *testing.T) {
	codec := NewCodec(testSecret, DefaultTTL)
	claims := Claims{
		ClaimUserID:   int64(42),
		ClaimUsername: "quinn",
		ClaimEmail:    "quinn@example.com",
	}

	tok, err := codec.Create(claims)
	require.NoError(t, err)
	require.Len(t, strings.Split(tok, "."), 3)

	decoded, err := codec.Verify(tok)
	require.NoError(t, err)

	id, ok := decoded.Int64(ClaimUserID)
	require.True(t, ok)
	require.Equal(t, int64(42), id)
	username, _ := decoded.String(ClaimUsername)
	require.Equal(t, "quinn", username)
	email, _ := decoded.String(ClaimEmail)
	require.Equal(t, "quinn@example.com", email)

	iat, ok := decoded.Int64(ClaimIssuedAt)
	require.True(t, ok)
	exp, ok := decoded.Int64(ClaimExpiry)
	require.True(t, ok)
	require.Equal(t, iat+int64(DefaultTTL/time.Second), exp)
	nbf, ok := decoded.Int64(ClaimNotBefore)
	require.True(t, ok)
	require.Equal(t, iat, nbf)
}

func TestVerifyRejectsTampering(t *testing.T) {
	codec := NewCodec(testSecret, time.Hour)
	tok, err := codec.Create(Claims{ClaimUserID: int64(1), ClaimUsername: "a"})
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	for idx, name := range map[int]string{1: "payload", 2: "signature"} {
		mutated := []byte(parts[idx])
		if mutated[0] == 'A' {
			mutated[0] = 'B'
		} else {
			mutated[0] = 'A'
		}
		forged := make([]string, 3)
		copy(forged, parts)
		forged[idx] = string(mutated)
		_, err := codec.Verify(strings.Join(forged, "."))
		require.Error(t, err, "tampered %s must be rejected", name)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	tok, err := NewCodec(testSecret, time.Hour).Create(Claims{ClaimUserID: int64(9)})
	require.NoError(t, err)

	_, err = NewCodec("other-secret", time.Hour).Verify(tok)
	require.ErrorIs(t, err, shared.ErrInvalidSignature)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	codec := NewCodec(testSecret, time.Hour)
	for _, tok := range []string{"", "abc", "a.b", "a.b.c.d", "!!!.???.###"} {
		_, err := codec.Verify(tok)
		require.ErrorIs(t, err, shared.ErrMalformedToken, "token %q", tok)
	}
}

func TestVerifyExpiry(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	codec := NewCodec(testSecret, 0)
	codec.now = fixedClock(issued)
	tok, err := codec.Create(Claims{ClaimUserID: int64(5)})
	require.NoError(t, err)

	// Same second as exp is still acceptable.
	_, err = codec.Verify(tok)
	require.NoError(t, err)

	codec.now = fixedClock(issued.Add(time.Second))
	_, err = codec.Verify(tok)
	require.ErrorIs(t, err, shared.ErrTokenExpired)
}

func TestVerifyAcceptsJustBeforeExpiry(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	codec := NewCodec(testSecret, time.Hour)
	codec.now = fixedClock(issued)
	tok, err := codec.Create(Claims{ClaimUserID: int64(5)})
	require.NoError(t, err)

	codec.now = fixedClock(issued.Add(time.Hour - time.Second))
	_, err = codec.Verify(tok)
	require.NoError(t, err)
}

func TestVerifyPathologicalExpiry(t *testing.T) {
	codec := NewCodec(testSecret, -time.Second)
	tok, err := codec.Create(Claims{ClaimUserID: int64(5)})
	require.NoError(t, err)

	_, err = codec.Verify(tok)
	require.ErrorIs(t, err, shared.ErrTokenExpired)
}

func TestVerifyNotBefore(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	codec := NewCodec(testSecret, time.Hour)
	codec.now = fixedClock(now.Add(5 * time.Minute))
	tok, err := codec.Create(Claims{ClaimUserID: int64(5)})
	require.NoError(t, err)

	codec.now = fixedClock(now)
	_, err = codec.Verify(tok)
	require.ErrorIs(t, err, shared.ErrTokenNotYetValid)

	codec.now = fixedClock(now.Add(6 * time.Minute))
	_, err = codec.Verify(tok)
	require.NoError(t, err)
}

func TestRefreshRenewsTimestamps(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	codec := NewCodec(testSecret, time.Hour)
	codec.now = fixedClock(issued)
	original, err := codec.Create(Claims{ClaimUserID: int64(42), ClaimUsername: "quinn"})
	require.NoError(t, err)

	codec.now = fixedClock(issued.Add(30 * time.Minute))
	refreshed, err := codec.Refresh(original)
	require.NoError(t, err)
	require.NotEqual(t, original, refreshed)

	claims, err := codec.Verify(refreshed)
	require.NoError(t, err)
	id, _ := claims.Int64(ClaimUserID)
	require.Equal(t, int64(42), id)
	iat, _ := claims.Int64(ClaimIssuedAt)
	require.Equal(t, issued.Add(30*time.Minute).Unix(), iat)

	// The original token remains independently valid until its own expiry.
	_, err = codec.Verify(original)
	require.NoError(t, err)
}

func TestRefreshRejectsExpiredInput(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	codec := NewCodec(testSecret, time.Minute)
	codec.now = fixedClock(issued)
	tok, err := codec.Create(Claims{ClaimUserID: int64(1)})
	require.NoError(t, err)

	codec.now = fixedClock(issued.Add(2 * time.Minute))
	_, err = codec.Refresh(tok)
	require.ErrorIs(t, err, shared.ErrTokenExpired)
}
