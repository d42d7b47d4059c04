package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

var (
	// ErrTokenInvalid indicates a token failed signature or claim validation.
	ErrTokenInvalid = errors.New("jwt: invalid token")
	// ErrTokenExpired indicates a well-formed token past its exp claim.
	ErrTokenExpired = errors.New("jwt: token expired")
)

const (
	defaultAccessTokenTTL = 30 * 24 * time.Hour
	generatedSecretBytes  = 32
)

// AccessTokenClaims carries the authenticated user id next to the registered claims.
type AccessTokenClaims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenIssuerConfig configures HS256 access token minting.
type TokenIssuerConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// TokenIssuer signs and parses HS256 access tokens.
type TokenIssuer struct {
	secret    []byte
	issuer    string
	ttl       time.Duration
	generated bool
	now       func() time.Time
}

// NewTokenIssuer builds an issuer. When no secret is configured a random one is
// generated; such tokens do not survive a restart, see SecretGenerated.
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	issuer := &TokenIssuer{
		secret: []byte(cfg.Secret),
		issuer: strings.TrimSpace(cfg.Issuer),
		ttl:    cfg.TTL,
		now:    time.Now,
	}
	if issuer.ttl <= 0 {
		issuer.ttl = defaultAccessTokenTTL
	}

	if strings.TrimSpace(cfg.Secret) == "" {
		secret, err := GenerateSecureToken(generatedSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("jwt: generate secret: %w", err)
		}
		issuer.secret = []byte(secret)
		issuer.generated = true
	}

	return issuer, nil
}

// WithClock overrides the clock used for iat/exp.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	if now != nil {
		i.now = now
	}
	return i
}

// SecretGenerated reports whether the signing secret was generated at startup.
func (i *TokenIssuer) SecretGenerated() bool {
	return i.generated
}

// Issue mints a token for userID.
func (i *TokenIssuer) Issue(userID int64) (string, time.Time, error) {
	if userID <= 0 {
		return "", time.Time{}, fmt.Errorf("jwt: user id is required")
	}

	now := i.now().UTC()
	expiresAt := now.Add(i.ttl)
	claims := &AccessTokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Parse validates the token signature and expiry and returns its user id.
func (i *TokenIssuer) Parse(raw string) (int64, error) {
	claims := &AccessTokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.UserID <= 0 {
		return 0, ErrTokenInvalid
	}

	return claims.UserID, nil
}
