package helpers

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenIssuer   = "cantina-online"
	TokenAudience = "cantina-online-web"

	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// JWTManager signs and verifies access and refresh tokens.
// The two token kinds use distinct secrets and carry a typ claim.
type JWTManager struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	now func() time.Time
}

func NewJWTManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		AccessSecret:  []byte(accessSecret),
		RefreshSecret: []byte(refreshSecret),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// Claims is the only accepted token payload.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

// TokenSubject identifies the user a token is issued for.
type TokenSubject struct {
	UserID int64
	Email  string
	Name   string
}

func (m *JWTManager) SignAccessToken(sub TokenSubject) (string, time.Time, error) {
	return m.sign(sub, TokenTypeAccess, m.AccessSecret, m.AccessTTL)
}

func (m *JWTManager) SignRefreshToken(sub TokenSubject) (string, time.Time, error) {
	return m.sign(sub, TokenTypeRefresh, m.RefreshSecret, m.RefreshTTL)
}

func (m *JWTManager) VerifyAccessToken(tokenStr string) (*Claims, error) {
	return m.verify(tokenStr, TokenTypeAccess, m.AccessSecret)
}

func (m *JWTManager) VerifyRefreshToken(tokenStr string) (*Claims, error) {
	return m.verify(tokenStr, TokenTypeRefresh, m.RefreshSecret)
}

func (m *JWTManager) clock() time.Time {
	if m.now == nil {
		return time.Now()
	}
	return m.now()
}

func (m *JWTManager) sign(sub TokenSubject, typ string, secret []byte, ttl time.Duration) (string, time.Time, error) {
	if sub.UserID <= 0 {
		return "", time.Time{}, errors.New("token subject is required")
	}
	now := m.clock()
	exp := now.Add(ttl)
	claims := &Claims{
		Email: sub.Email,
		Name:  sub.Name,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(sub.UserID, 10),
			Issuer:    TokenIssuer,
			Audience:  jwt.ClaimStrings{TokenAudience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(secret)
	return s, exp, err
}

func (m *JWTManager) verify(tokenStr, typ string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock),
	)
	if err != nil || !tkn.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != typ || claims.UserID() <= 0 || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
