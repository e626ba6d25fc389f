package google

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// stateTTL bounds how long a consent page may stay open.
const stateTTL = 10 * time.Minute

const statePurpose = "drive-connect"

// StateSigner binds the OAuth state parameter to the user who started the
// connect flow, so the callback knows whose tokens it received.
type StateSigner struct {
	secret []byte
}

func NewStateSigner(secret string) *StateSigner {
	return &StateSigner{secret: []byte(secret)}
}

type stateClaims struct {
	Purpose string `json:"pur"`
	jwt.RegisteredClaims
}

// Sign returns an opaque state value for userID.
func (s *StateSigner) Sign(userID string) (string, error) {
	now := time.Now()
	claims := stateClaims{
		Purpose: statePurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify returns the user id bound to state.
func (s *StateSigner) Verify(state string) (string, error) {
	claims := &stateClaims{}
	_, err := jwt.ParseWithClaims(state, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("invalid state: %w", err)
	}
	if claims.Purpose != statePurpose || claims.Subject == "" {
		return "", errors.New("invalid state: wrong purpose")
	}
	return claims.Subject, nil
}
