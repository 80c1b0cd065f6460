// Package auth covers operator identity: bcrypt passwords, HS256 session
// tokens, and the middleware that turns a bearer token into context claims.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"dbugate/internal/models"
)

// JWTManager signs and verifies operator session tokens. The secret and TTL
// are injected at construction so the manager is testable in isolation.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), ttl: ttl}
}

func (m *JWTManager) Sign(op *models.Operator) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(op.OperatorID), 10),
		"username": op.Username,
		"role":     op.Role,
		"jti":      uuid.NewString(),
		"iat":      now.Unix(),
		"exp":      now.Add(m.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *JWTManager) Verify(tokenStr string) (Claims, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return Claims{}, errors.New("invalid token")
	}
	mapc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid claims")
	}
	sub, _ := mapc["sub"].(string)
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return Claims{}, errors.New("invalid subject")
	}
	username, _ := mapc["username"].(string)
	role, _ := mapc["role"].(string)
	return Claims{OperatorID: uint(id), Username: username, Role: role}, nil
}
