package centrifugo

import (
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const tokenTTL = 24 * time.Hour

// ConnectionToken signs an HS256 connection JWT for a fresh client id.
// https://centrifugal.dev/docs/server/authentication
func ConnectionToken(secret string, now time.Time) (token, clientID string, err error) {
	if secret == "" {
		return "", "", errors.New("empty token secret")
	}

	clientID = "liveview#" + uuid.New().String()
	claims := jwt.StandardClaims{
		Subject:   clientID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(tokenTTL).Unix(),
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", "", errors.Wrap(err, "can't sign connection token")
	}

	return token, clientID, nil
}
