package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

// Identity is the authenticated caller. It is passed explicitly into every
// service call; there is no ambient current-user state.
type Identity struct {
	UID   uuid.UUID
	Role  Role
	Email string
}

type claims struct {
	jwt.RegisteredClaims
	Role  string `json:"role"`
	Email string `json:"email"`
}

// Verifier checks bearer tokens issued by the external auth provider.
// The service only verifies; it never issues tokens to end users.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(tokenString string) (Identity, error) {
	var c claims

	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrTokenInvalid
	}
	if !token.Valid {
		return Identity{}, ErrTokenInvalid
	}

	uid, err := uuid.Parse(c.Subject)
	if err != nil {
		return Identity{}, ErrTokenInvalid
	}

	role := Role(c.Role)
	if role != RolePatient && role != RoleDoctor {
		return Identity{}, ErrTokenInvalid
	}

	return Identity{UID: uid, Role: role, Email: c.Email}, nil
}

// Mint signs a token for the given identity. Used by tests and the load
// simulator; production tokens come from the auth provider.
func (v *Verifier) Mint(ident Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.UID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:  string(ident.Role),
		Email: ident.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
