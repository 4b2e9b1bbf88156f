package jwt

import (
	"crypto/rsa"
	"errors"
	"os"
	"time"

	customErrors "github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/credential/errors"
	jwt2 "github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/credential/jwt"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type JwtIssuerImpl struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	ttl       time.Duration
	leeway    time.Duration
	issuer    string
	audience  string
	now       func() time.Time
}

// NewJWTIssuer signs with RS256 when an RSA key pair is configured and falls
// back to HS256 with the shared secret otherwise.
func NewJWTIssuer(cfg *config.Config) (*JwtIssuerImpl, error) {
	if cfg.JWTPrivateKeyPath != "" {
		privKey, pubKey, err := loadRSAKeys(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath)
		if err != nil {
			return nil, err
		}
		return NewRS256(privKey, pubKey, cfg), nil
	}
	if cfg.JWTSecret == "" {
		return nil, customErrors.WrapInternal(errors.New("empty secret"), "NewJWTIssuer")
	}
	return NewHS256([]byte(cfg.JWTSecret), cfg), nil
}

func NewRS256(priv *rsa.PrivateKey, pub *rsa.PublicKey, cfg *config.Config) *JwtIssuerImpl {
	return newIssuer(jwt.SigningMethodRS256, priv, pub, cfg)
}

func NewHS256(secret []byte, cfg *config.Config) *JwtIssuerImpl {
	return newIssuer(jwt.SigningMethodHS256, secret, secret, cfg)
}

func newIssuer(m jwt.SigningMethod, sign, verify any, cfg *config.Config) *JwtIssuerImpl {
	return &JwtIssuerImpl{
		method:    m,
		signKey:   sign,
		verifyKey: verify,
		ttl:       cfg.TokenTTL,
		leeway:    cfg.TokenLeeway,
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		now:       time.Now,
	}
}

// WithClock replaces the time source used for both minting and validation.
func (j *JwtIssuerImpl) WithClock(now func() time.Time) *JwtIssuerImpl {
	j.now = now
	return j
}

func (j *JwtIssuerImpl) Issue(subject string) (string, time.Time, error) {
	now := j.now()

	claims := jwt2.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			ID:        uuid.NewString(),
		},
	}
	if j.audience != "" {
		claims.Audience = jwt.ClaimStrings{j.audience}
	}

	signed, err := jwt.NewWithClaims(j.method, claims).SignedString(j.signKey)
	if err != nil {
		return "", time.Time{}, customErrors.WrapInternal(err, "sign token")
	}

	return signed, claims.ExpiresAt.Time, nil
}

// Validate checks the signature before any claim, so a tampered token is
// reported as invalid even when it is also expired.
func (j *JwtIssuerImpl) Validate(raw string) (jwt2.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(j.leeway),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	if j.audience != "" {
		opts = append(opts, jwt.WithAudience(j.audience))
	}

	token, err := jwt.ParseWithClaims(raw, &jwt2.Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != j.method.Alg() {
			return nil, customErrors.ErrTokenInvalid
		}
		return j.verifyKey, nil
	}, opts...)

	switch {
	case err != nil && errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return jwt2.Claims{}, customErrors.ErrTokenExpired
	case err != nil || !token.Valid:
		return jwt2.Claims{}, customErrors.ErrTokenInvalid
	}

	claims, ok := token.Claims.(*jwt2.Claims)
	if !ok || claims.Subject == "" {
		return jwt2.Claims{}, customErrors.ErrTokenInvalid
	}

	return *claims, nil
}

func loadRSAKeys(privPath, pubPath string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	privPem, err := os.ReadFile(privPath)
	if err != nil {
		return nil, nil, customErrors.WrapInternal(err, "read private key")
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privPem)
	if err != nil {
		return nil, nil, customErrors.WrapInternal(err, "parse private key")
	}

	pubPem, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, nil, customErrors.WrapInternal(err, "read public key")
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubPem)
	if err != nil {
		return nil, nil, customErrors.WrapInternal(err, "parse public key")
	}
	return privKey, pubKey, nil
}
