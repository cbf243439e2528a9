package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	apperrors "github.com/thirtybees/blocknewsletter/internal/pkg/errors"
)

const (
	tokenIssuer   = "blocknewsletter"
	tokenAudience = "newsletter-admin"
	adminKeyID    = "admin-hs256"
)

// AdminClaims содержит поля токена администратора
type AdminClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTService выпускает и проверяет токены back-office
type JWTService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewJWTService создает новый сервис JWT
func NewJWTService(secret string, expirationHrs int) (*JWTService, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is required for JWTService")
	}
	if expirationHrs <= 0 {
		expirationHrs = 12
	}
	return &JWTService{
		secret: []byte(secret),
		expiry: time.Duration(expirationHrs) * time.Hour,
		now:    time.Now,
	}, nil
}

// GenerateToken создает токен для администратора и возвращает время его истечения
func (s *JWTService) GenerateToken(username string) (string, time.Time, error) {
	if username == "" {
		return "", time.Time{}, errors.New("username cannot be empty")
	}
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.expiry)

	claims := &AdminClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Issuer:    tokenIssuer,
			Subject:   username,
			Audience:  jwt.ClaimStrings{tokenAudience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = adminKeyID

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign admin token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseToken проверяет токен и возвращает его claims.
// Истёкший токен даёт apperrors.ErrExpiredToken, любой другой дефект apperrors.ErrUnauthorized.
func (s *JWTService) ParseToken(tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		if kid, _ := token.Header["kid"].(string); kid != adminKeyID {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return s.secret, nil
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc)
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			switch {
			case ve.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, fmt.Errorf("%w: token is malformed", apperrors.ErrUnauthorized)
			case ve.Errors&jwt.ValidationErrorExpired != 0:
				return nil, apperrors.ErrExpiredToken
			case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
				return nil, fmt.Errorf("%w: signature is invalid", apperrors.ErrUnauthorized)
			}
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err)
	}
	if !token.Valid {
		return nil, apperrors.ErrUnauthorized
	}
	if !claims.VerifyAudience(tokenAudience, true) || !claims.VerifyIssuer(tokenIssuer, true) {
		return nil, fmt.Errorf("%w: wrong audience or issuer", apperrors.ErrUnauthorized)
	}
	return claims, nil
}
