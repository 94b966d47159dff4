package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/apperrors"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/config"
)

// ErrMissingToken is returned when a request or message carries no session token.
var ErrMissingToken = errors.New("session token missing")

// SessionClaims are the claims of a session token issued by the identity
// provider. The subject is the owner id.
type SessionClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier resolves a raw session token to the owner it was issued for.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// SessionVerifier checks HS256 session tokens signed with the provider's secret.
type SessionVerifier struct {
	secret    []byte
	issuer    string
	parser    *jwt.Parser
	sigParser *jwt.Parser
}

var _ TokenVerifier = (*SessionVerifier)(nil)

// NewSessionVerifier builds a verifier from the auth config.
func NewSessionVerifier(cfg config.AuthConfig) (*SessionVerifier, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("session verifier: empty jwt secret")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	sigParser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	return &SessionVerifier{
		secret:    []byte(cfg.JWTSecret),
		issuer:    cfg.Issuer,
		parser:    jwt.NewParser(opts...),
		sigParser: sigParser,
	}, nil
}

// Verify validates signature, expiry and the optional issuer/audience, and
// returns the subject. Every failure wraps apperrors.ErrUnauthenticated.
func (v *SessionVerifier) Verify(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: %w", apperrors.ErrUnauthenticated, ErrMissingToken)
	}

	claims := &SessionClaims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrUnauthenticated, err)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: token has no subject", apperrors.ErrUnauthenticated)
	}
	return subject, nil
}

// VerifySignature checks signature and issuer but not expiry, and returns the
// subject. Dead letters are retried after the publishing session has expired.
func (v *SessionVerifier) VerifySignature(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: %w", apperrors.ErrUnauthenticated, ErrMissingToken)
	}

	claims := &SessionClaims{}
	_, err := v.sigParser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrUnauthenticated, err)
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return "", fmt.Errorf("%w: unexpected issuer %q", apperrors.ErrUnauthenticated, claims.Issuer)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", apperrors.ErrUnauthenticated)
	}
	return claims.Subject, nil
}

// IssueToken signs a session token for ownerID. The service itself never
// hands these out; the load generator and tests use it to act as the
// identity provider.
func IssueToken(cfg config.AuthConfig, ownerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Role: "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// TokenFromRequest prefers the session cookie and falls back to the
// Authorization header.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}
	return BearerToken(r.Header.Get("Authorization"))
}
