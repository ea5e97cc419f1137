package repository

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential is a database password candidate. ExpiresAt is zero when the
// lifetime is unknown.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Candidate produces a credential. An empty token means the candidate is not
// available and is skipped silently.
type Candidate struct {
	Name  string
	Fetch func(ctx context.Context) (Credential, error)
}

// Candidate names, in priority order.
const (
	CandidateRequest    = "request"
	CandidateConfigured = "configured"
	CandidatePlatform   = "platform"
	CandidateMinted     = "minted"
)

type requestTokenKey struct{}

// WithRequestToken attaches a per-request database token to ctx.
func WithRequestToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, requestTokenKey{}, token)
}

// RequestToken returns the token attached by WithRequestToken.
func RequestToken(ctx context.Context) string {
	s, _ := ctx.Value(requestTokenKey{}).(string)
	return s
}

// Minter issues short-lived database credentials.
type Minter interface {
	Mint(ctx context.Context) (Credential, error)
}

// MinterFunc adapts a function to Minter.
type MinterFunc func(ctx context.Context) (Credential, error)

// Mint calls f.
func (f MinterFunc) Mint(ctx context.Context) (Credential, error) { return f(ctx) }

// DefaultCandidates returns the standard candidate order: explicit request
// token, configured password, platform token, freshly minted credential.
func DefaultCandidates(configured, platform string, minter Minter) []Candidate {
	static := func(tok string) func(context.Context) (Credential, error) {
		return func(context.Context) (Credential, error) {
			return Credential{Token: tok}, nil
		}
	}
	out := []Candidate{
		{Name: CandidateRequest, Fetch: func(ctx context.Context) (Credential, error) {
			return Credential{Token: RequestToken(ctx)}, nil
		}},
		{Name: CandidateConfigured, Fetch: static(configured)},
		{Name: CandidatePlatform, Fetch: static(platform)},
	}
	if minter != nil {
		out = append(out, Candidate{Name: CandidateMinted, Fetch: minter.Mint})
	}
	return out
}

// TokenExpiry decodes the exp claim of a JWT without verifying it. Opaque
// tokens report false.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser(jwt.WithoutClaimsValidation()).ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
