package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/iurnickita/poscashup/internal/model"
)

// Claims - утверждения токена терминала
type Claims struct {
	jwt.RegisteredClaims
	ClientID       string `json:"client"`
	OrganizationID string `json:"org"`
	TerminalID     string `json:"terminal"`
}

var ErrInvalidToken = errors.New("invalid token")

// NewToken подписывает токен для пользователя терминала.
func NewToken(secret string, ttl time.Duration, rc model.RequestContext) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  rc.UserID,
			IssuedAt: jwt.NewNumericDate(now),
		},
		ClientID:       rc.ClientID,
		OrganizationID: rc.OrganizationID,
		TerminalID:     rc.TerminalID,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken проверяет подпись и срок токена и возвращает контекст запроса.
func ParseToken(secret string, tokenString string) (model.RequestContext, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return model.RequestContext{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return model.RequestContext{}, ErrInvalidToken
	}
	if claims.Subject == "" || claims.TerminalID == "" {
		return model.RequestContext{}, fmt.Errorf("%w: user and terminal are required", ErrInvalidToken)
	}

	return model.RequestContext{
		ClientID:       claims.ClientID,
		OrganizationID: claims.OrganizationID,
		TerminalID:     claims.TerminalID,
		UserID:         claims.Subject,
	}, nil
}
