package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
)

var testKey = []byte("test-signing-key-0123456789")

func TestIssueAndVerify(t *testing.T) {
	ti := NewTokenIssuer(testKey, time.Hour)

	token, err := ti.Issue("user-1")
	assert.NoError(t, err, "expected no error issuing token")
	assert.NotEmpty(t, token, "expected token to be non-empty")

	userId, err := ti.Verify(token)
	assert.NoError(t, err, "expected token to verify")
	assert.Equal(t, "user-1", userId, "expected subject to round trip")
}

func TestIssue_EmptyUserId(t *testing.T) {
	ti := NewTokenIssuer(testKey, time.Hour)
	_, err := ti.Issue("")
	assert.Error(t, err, "expected error for empty user id")
}

func TestVerify(t *testing.T) {
	ti := NewTokenIssuer(testKey, time.Hour)

	expired := NewTokenIssuer(testKey, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.Issue("user-1")
	assert.NoError(t, err)

	otherKeyToken, err := NewTokenIssuer([]byte("another-signing-key-abcdef"), time.Hour).Issue("user-1")
	assert.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{Subject: "user-1"}).SignedString(testKey)
	assert.NoError(t, err)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}).SignedString(testKey)
	assert.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.StandardClaims{
		Subject:   "user-1",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	assert.NoError(t, err)

	tcases := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{name: "expired", token: expiredToken},
		{name: "wrong key", token: otherKeyToken},
		{name: "missing expiry", token: noExp},
		{name: "missing subject", token: noSub},
		{name: "none algorithm", token: unsigned},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			userId, err := ti.Verify(tc.token)
			assert.ErrorIs(t, err, ErrInvalidToken, "expected ErrInvalidToken")
			assert.Empty(t, userId, "expected no user id")
		})
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("password")
	assert.NoError(t, err, "expected no error hashing password")
	assert.NotEqual(t, "password", hash, "expected hash to differ from plain text")
	assert.True(t, VerifyPassword(hash, "password"), "expected password to verify")
	assert.False(t, VerifyPassword(hash, "wrong"), "expected wrong password to fail")
}
