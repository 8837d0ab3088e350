// internal/auth/signer.go
package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token roles.
const (
	RoleHost   = "host"
	RolePlayer = "player"
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrWrongRoom    = errors.New("token was issued for another room")
	ErrWrongRole    = errors.New("token carries the wrong role")
	ErrDigestMatch  = errors.New("token does not match the room's host digest")
)

// Claims are the JWT claims of host and player tokens. Subject is the
// participant id for players.
type Claims struct {
	Room string `json:"room"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Signer issues and verifies EdDSA tokens bound to a room.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	ttl  time.Duration
	now  func() time.Time
}

// NewSigner builds a Signer. An empty seedHex generates a fresh key pair, which
// invalidates all tokens on restart. A zero ttl issues tokens without expiry.
func NewSigner(seedHex string, ttl time.Duration) (*Signer, error) {
	var priv ed25519.PrivateKey
	if seedHex == "" {
		var err error
		_, priv, err = ed25519.GenerateKey(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
		}
	} else {
		seed, err := hex.DecodeString(seedHex)
		if err != nil || len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("token key seed must be %d hex-encoded bytes", ed25519.SeedSize)
		}
		priv = ed25519.NewKeyFromSeed(seed)
	}
	return &Signer{
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
		ttl:  ttl,
		now:  time.Now,
	}, nil
}

func (s *Signer) sign(room, role, subject string) (string, error) {
	now := s.now()
	claims := Claims{
		Room: room,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.priv)
}

func (s *Signer) parse(tokenString, room, role string) (*Claims, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.pub, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !t.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Room != room {
		return nil, ErrWrongRoom
	}
	if claims.Role != role {
		return nil, ErrWrongRole
	}
	return claims, nil
}

// IssueHost creates the host credential for a room and the digest the room stores.
func (s *Signer) IssueHost(room string) (token, digest string, err error) {
	token, err = s.sign(room, RoleHost, "")
	if err != nil {
		return "", "", err
	}
	digest, err = CreateDigest(token, DigestParams)
	if err != nil {
		return "", "", err
	}
	return token, digest, nil
}

// VerifyHost checks the token's signature and room, then the stored digest.
// The digest check pins the room to the one credential issued at creation.
func (s *Signer) VerifyHost(room, token, digest string) error {
	if _, err := s.parse(token, room, RoleHost); err != nil {
		return err
	}
	ok, err := CompareDigest(token, digest)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDigestMatch
	}
	return nil
}

// IssuePlayer creates a session token naming a participant of a room.
func (s *Signer) IssuePlayer(room string, participantID uuid.UUID) (string, error) {
	return s.sign(room, RolePlayer, participantID.String())
}

// VerifyPlayer returns the participant id a player token was issued for.
func (s *Signer) VerifyPlayer(room, token string) (uuid.UUID, error) {
	claims, err := s.parse(token, room, RolePlayer)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrTokenInvalid)
	}
	return id, nil
}
