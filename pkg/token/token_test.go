package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCodecSignAndParse(t *testing.T) {
	codec := NewCodec("secret", KindSocietyPass)
	issued := time.Date(2025, 1, 10, 21, 30, 0, 0, time.UTC)
	expires := time.Date(2025, 1, 11, 2, 0, 0, 0, time.UTC)

	raw, err := codec.Sign(Claims{RequestID: "req-1", StudentID: "student-1", IssuedAt: issued, ExpiresAt: expires})
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims, err := codec.Parse(raw, issued.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, "req-1", claims.RequestID)
	require.Equal(t, "student-1", claims.StudentID)
	require.Equal(t, KindSocietyPass, claims.Kind)
	require.True(t, claims.ExpiresAt.Equal(expires))
}

func TestCodecRejectsTamperedToken(t *testing.T) {
	codec := NewCodec("secret", KindSocietyPass)
	raw, err := codec.Sign(Claims{
		RequestID: "req-1",
		StudentID: "student-1",
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	parts[1] = "req-2"
	_, err = codec.Parse(strings.Join(parts, "."), time.Now())
	require.Error(t, err)
	require.IsType(t, ErrBadToken{}, err)
}

func TestCodecRejectsWrongSecret(t *testing.T) {
	minted := NewCodec("secret-a", KindSocietyPass)
	raw, err := minted.Sign(Claims{
		RequestID: "req-1",
		StudentID: "student-1",
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	other := NewCodec("secret-b", KindSocietyPass)
	_, err = other.Parse(raw, time.Now())
	require.IsType(t, ErrBadToken{}, err)
}

func TestCodecRejectsForeignKind(t *testing.T) {
	academic := NewCodec("secret", KindAcademicPass)
	raw, err := academic.Sign(Claims{
		RequestID: "req-1",
		StudentID: "student-1",
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	society := NewCodec("secret", KindSocietyPass)
	_, err = society.Parse(raw, time.Now())
	require.IsType(t, ErrBadToken{}, err)
}

func TestCodecExpiry(t *testing.T) {
	codec := NewCodec("secret", KindSocietyPass)
	expires := time.Date(2025, 1, 11, 2, 0, 0, 0, time.UTC)
	raw, err := codec.Sign(Claims{
		RequestID: "req-1",
		StudentID: "student-1",
		IssuedAt:  expires.Add(-4 * time.Hour),
		ExpiresAt: expires,
	})
	require.NoError(t, err)

	_, err = codec.Parse(raw, expires.Add(-time.Minute))
	require.NoError(t, err)

	_, err = codec.Parse(raw, expires.Add(time.Minute))
	require.IsType(t, ErrTokenExpired{}, err)
}

func TestFingerprintStable(t *testing.T) {
	require.Equal(t, Fingerprint("abc"), Fingerprint("abc"))
	require.NotEqual(t, Fingerprint("abc"), Fingerprint("abd"))
	require.Len(t, Fingerprint("abc"), 16)
}
