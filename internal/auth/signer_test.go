package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSeed = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestHostCredentialRoundTrip(t *testing.T) {
	s, err := NewSigner(testSeed, 0)
	require.NoError(t, err)

	token, digest, err := s.IssueHost("ABC123")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.True(t, strings.HasPrefix(digest, "$argon2id$"))
	assert.NotContains(t, digest, token)

	assert.NoError(t, s.VerifyHost("ABC123", token, digest))
	assert.ErrorIs(t, s.VerifyHost("XYZ789", token, digest), ErrWrongRoom)
	assert.ErrorIs(t, s.VerifyHost("ABC123", token+"x", digest), ErrTokenInvalid)
}

func TestHostCredentialIsPinnedToDigest(t *testing.T) {
	s, err := NewSigner(testSeed, 0)
	require.NoError(t, err)

	_, digest, err := s.IssueHost("ABC123")
	require.NoError(t, err)
	// A second validly signed host token for the same room is still rejected.
	other, _, err := s.IssueHost("ABC123")
	require.NoError(t, err)
	assert.ErrorIs(t, s.VerifyHost("ABC123", other, digest), ErrDigestMatch)
}

func TestPlayerTokens(t *testing.T) {
	s, err := NewSigner("", time.Hour)
	require.NoError(t, err)

	pid := uuid.New()
	token, err := s.IssuePlayer("ABC123", pid)
	require.NoError(t, err)

	got, err := s.VerifyPlayer("ABC123", token)
	require.NoError(t, err)
	assert.Equal(t, pid, got)

	_, err = s.VerifyPlayer("ZZZ999", token)
	assert.ErrorIs(t, err, ErrWrongRoom)

	host, digest, err := s.IssueHost("ABC123")
	require.NoError(t, err)
	_, err = s.VerifyPlayer("ABC123", host)
	assert.ErrorIs(t, err, ErrWrongRole)
	// A player token never passes as a host credential.
	assert.ErrorIs(t, s.VerifyHost("ABC123", token, digest), ErrWrongRole)
}

func TestExpiredToken(t *testing.T) {
	s, err := NewSigner(testSeed, time.Minute)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := s.IssuePlayer("ABC123", uuid.New())
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.VerifyPlayer("ABC123", token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestSignerRejectsOtherKeys(t *testing.T) {
	a, err := NewSigner("", 0)
	require.NoError(t, err)
	b, err := NewSigner("", 0)
	require.NoError(t, err)

	token, err := a.IssuePlayer("ABC123", uuid.New())
	require.NoError(t, err)
	_, err = b.VerifyPlayer("ABC123", token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestNewSignerBadSeed(t *testing.T) {
	_, err := NewSigner("abcd", 0)
	assert.Error(t, err)
}

func TestDigest(t *testing.T) {
	d, err := CreateDigest("secret", DigestParams)
	require.NoError(t, err)

	ok, err := CompareDigest("secret", d)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CompareDigest("other", d)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CompareDigest("secret", "not-a-digest")
	assert.ErrorIs(t, err, ErrInvalidDigest)
}
