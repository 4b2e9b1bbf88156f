package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims binds a username as the token subject.
type Claims struct {
	jwt.RegisteredClaims
}

type TokenIssuer interface {
	Issue(subject string) (token string, exp time.Time, err error)
	Validate(token string) (claims Claims, err error)
}
