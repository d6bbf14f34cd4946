package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Kind discriminates token families so a pass minted by one workflow can
// never be redeemed against another even when both embed a request id.
type Kind string

const (
	// KindSocietyPass covers the society-sponsored exit approval chain.
	KindSocietyPass Kind = "SOCIETY_PASS"
	// KindAcademicPass is reserved for the academic permission family.
	KindAcademicPass Kind = "ACADEMIC_PASS"
)

// Claims is the verifiable payload embedded in a pass token.
type Claims struct {
	RequestID string
	StudentID string
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ErrBadToken means the token failed structural or signature checks.
type ErrBadToken struct{ reason string }

func (e ErrBadToken) Error() string { return "bad token: " + e.reason }

// ErrTokenExpired means the token parsed but its embedded expiry has passed.
type ErrTokenExpired struct{ ExpiredAt time.Time }

func (e ErrTokenExpired) Error() string {
	return fmt.Sprintf("token expired at %s", e.ExpiredAt.Format(time.RFC3339))
}

// Codec signs and verifies compact pass tokens. Signature and expiry are
// checked without any store round-trip; only current request state needs one.
type Codec struct {
	secret []byte
	kind   Kind
}

// NewCodec constructs a codec bound to a single token kind.
func NewCodec(secret string, kind Kind) *Codec {
	return &Codec{secret: []byte(secret), kind: kind}
}

// Sign mints a token for the claims. The codec's kind overrides any kind set
// on the claims.
func (c *Codec) Sign(claims Claims) (string, error) {
	if claims.RequestID == "" || claims.StudentID == "" {
		return "", fmt.Errorf("request and student ids required")
	}
	if len(c.secret) == 0 {
		return "", fmt.Errorf("signing secret missing")
	}
	encodedSubject := base64.RawURLEncoding.EncodeToString([]byte(claims.StudentID))
	payload := fmt.Sprintf("%s|%s|%s|%d|%d",
		string(c.kind), claims.RequestID, encodedSubject, claims.IssuedAt.Unix(), claims.ExpiresAt.Unix())
	signature := c.sign(payload)
	return strings.Join([]string{
		string(c.kind),
		claims.RequestID,
		encodedSubject,
		fmt.Sprintf("%d", claims.IssuedAt.Unix()),
		fmt.Sprintf("%d", claims.ExpiresAt.Unix()),
		signature,
	}, "."), nil
}

// Parse validates signature, kind and expiry against now, returning the
// embedded claims. A kind mismatch is a bad token, not an expired one.
func (c *Codec) Parse(raw string, now time.Time) (*Claims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 6 {
		return nil, ErrBadToken{"wrong segment count"}
	}
	kind, requestID, encodedSubject := parts[0], parts[1], parts[2]
	issuedRaw, expiresRaw, signature := parts[3], parts[4], parts[5]

	payload := fmt.Sprintf("%s|%s|%s|%s|%s", kind, requestID, encodedSubject, issuedRaw, expiresRaw)
	expected := c.sign(payload)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrBadToken{"signature mismatch"}
	}
	if Kind(kind) != c.kind {
		return nil, ErrBadToken{"kind mismatch"}
	}

	subject, err := base64.RawURLEncoding.DecodeString(encodedSubject)
	if err != nil {
		return nil, ErrBadToken{"subject not decodable"}
	}
	issuedUnix, err := parseUnix(issuedRaw)
	if err != nil {
		return nil, ErrBadToken{"invalid issued timestamp"}
	}
	expiresUnix, err := parseUnix(expiresRaw)
	if err != nil {
		return nil, ErrBadToken{"invalid expiry timestamp"}
	}

	claims := &Claims{
		RequestID: requestID,
		StudentID: string(subject),
		Kind:      Kind(kind),
		IssuedAt:  time.Unix(issuedUnix, 0),
		ExpiresAt: time.Unix(expiresUnix, 0),
	}
	if now.After(claims.ExpiresAt) {
		return nil, ErrTokenExpired{ExpiredAt: claims.ExpiresAt}
	}
	return claims, nil
}

// Fingerprint returns a short stable digest of a token for audit rows, so raw
// tokens never land in logs.
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:8])
}

func (c *Codec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseUnix(raw string) (int64, error) {
	var ts int64
	_, err := fmt.Sscanf(raw, "%d", &ts)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp")
	}
	return ts, nil
}
