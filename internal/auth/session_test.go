package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/apperrors"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/config"
)

var testAuth = config.AuthConfig{
	JWTSecret:  "test-secret-at-least-32-bytes-long!!",
	CookieName: "sb-access-token",
	Issuer:     "https://auth.example.test",
}

func newVerifier(t *testing.T, cfg config.AuthConfig) *SessionVerifier {
	v, err := NewSessionVerifier(cfg)
	require.NoError(t, err)
	return v
}

func TestVerify_RoundTrip(t *testing.T) {
	token, err := IssueToken(testAuth, "owner-1", time.Hour)
	require.NoError(t, err)

	sub, err := newVerifier(t, testAuth).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", sub)
}

func TestVerify_Rejects(t *testing.T) {
	v := newVerifier(t, testAuth)

	expired, err := IssueToken(testAuth, "owner-1", -time.Hour)
	require.NoError(t, err)

	otherSecret := testAuth
	otherSecret.JWTSecret = "a-completely-different-secret-value"
	forged, err := IssueToken(otherSecret, "owner-1", time.Hour)
	require.NoError(t, err)

	otherIssuer := testAuth
	otherIssuer.Issuer = "https://evil.example.test"
	wrongIss, err := IssueToken(otherIssuer, "owner-1", time.Hour)
	require.NoError(t, err)

	noSub, err := IssueToken(testAuth, "", time.Hour)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "owner-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt",
		"expired":      expired,
		"wrong secret": forged,
		"wrong issuer": wrongIss,
		"no subject":   noSub,
		"alg none":     none,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.True(t, apperrors.IsUnauthenticatedError(err), "got %v", err)
		})
	}
}

func TestVerifySignature_AcceptsExpired(t *testing.T) {
	v := newVerifier(t, testAuth)

	expired, err := IssueToken(testAuth, "owner-1", -48*time.Hour)
	require.NoError(t, err)

	sub, err := v.VerifySignature(expired)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", sub)
}

func TestVerifySignature_Rejects(t *testing.T) {
	v := newVerifier(t, testAuth)

	otherSecret := testAuth
	otherSecret.JWTSecret = "a-completely-different-secret-value"
	forged, err := IssueToken(otherSecret, "owner-1", time.Hour)
	require.NoError(t, err)

	otherIssuer := testAuth
	otherIssuer.Issuer = "https://evil.example.test"
	wrongIss, err := IssueToken(otherIssuer, "owner-1", time.Hour)
	require.NoError(t, err)

	noSub, err := IssueToken(testAuth, "", time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt",
		"wrong secret": forged,
		"wrong issuer": wrongIss,
		"no subject":   noSub,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.VerifySignature(token)
			assert.True(t, apperrors.IsUnauthenticatedError(err), "got %v", err)
		})
	}
}

func TestNewSessionVerifier_RequiresSecret(t *testing.T) {
	_, err := NewSessionVerifier(config.AuthConfig{})
	assert.Error(t, err)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/contact/save", nil)
	assert.Equal(t, "", TokenFromRequest(r, "sb-access-token"))

	r.Header.Set("Authorization", "Bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", TokenFromRequest(r, "sb-access-token"))

	r.Header.Set("Cookie", "sb-access-token=cookie-token")
	assert.Equal(t, "cookie-token", TokenFromRequest(r, "sb-access-token"), "cookie wins")
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "tok", BearerToken("Bearer tok"))
	assert.Equal(t, "tok", BearerToken("bearer   tok "))
	assert.Equal(t, "", BearerToken("Basic dXNlcg=="))
	assert.Equal(t, "", BearerToken("tok"))
}
