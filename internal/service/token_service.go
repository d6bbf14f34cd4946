package service

import (
	"github.com/noah-isme/campus-outpass-api/internal/models"
	"github.com/noah-isme/campus-outpass-api/internal/schedule"
	"github.com/noah-isme/campus-outpass-api/pkg/clock"
	"github.com/noah-isme/campus-outpass-api/pkg/token"
)

// TokenIssuer mints a gate token for a finally-approved pass request.
type TokenIssuer struct {
	codec *token.Codec
	clock clock.Clock
}

// NewTokenIssuer constructs the issuer.
func NewTokenIssuer(codec *token.Codec, clk clock.Clock) *TokenIssuer {
	if clk == nil {
		clk = clock.System{}
	}
	return &TokenIssuer{codec: codec, clock: clk}
}

// Mint computes the hard expiry and signs the token. Expiry is 02:00 the day
// after the authorization date regardless of the stated return time; the
// slack tolerates late returns while still bounding validity. Minting writes
// nothing: the grant only takes effect through the conditional approval
// write, which keeps issuance idempotent per request.
func (i *TokenIssuer) Mint(req *models.PassRequest) (models.TokenGrant, error) {
	issuedAt := i.clock.Now()
	expiresAt := schedule.TokenExpiry(req.Date)
	signed, err := i.codec.Sign(token.Claims{
		RequestID: req.ID,
		StudentID: req.StudentID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return models.TokenGrant{}, err
	}
	return models.TokenGrant{
		RequestID: req.ID,
		Token:     signed,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}
