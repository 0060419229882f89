package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/suPer8Hu/support-desk/internal/common"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleStaff
}

// Identity is the authenticated principal bound to a connection or request.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (i Identity) IsStaff() bool    { return i.Role == RoleStaff }
func (i Identity) IsCustomer() bool { return i.Role == RoleCustomer }

var (
	ErrMissingToken = errors.New("missing")
	ErrInvalidToken = errors.New("invalid")
)

// Claims carries the storefront identity. The id claim is numeric for tokens
// issued by the storefront and a string for tokens minted by supportctl.
type Claims struct {
	ID       common.FlexID `json:"id"`
	Username string        `json:"username"`
	Role     Role          `json:"role"`
	jwt.RegisteredClaims
}

func SignJWT(id Identity, secret string, ttl time.Duration) (string, error) {
	if !id.Role.Valid() {
		return "", fmt.Errorf("sign token: invalid role %q", id.Role)
	}
	now := time.Now()
	claims := Claims{
		ID:       common.FlexID(id.ID),
		Username: id.Username,
		Role:     id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseJWT verifies signature and expiry and extracts the identity.
// Every failure maps to ErrInvalidToken; an empty token is ErrMissingToken.
func ParseJWT(tokenString, secret string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrMissingToken
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id := claims.ID.String()
	if id == "" {
		id = claims.Subject
	}
	if id == "" || !claims.Role.Valid() {
		return Identity{}, fmt.Errorf("%w: incomplete claims", ErrInvalidToken)
	}
	return Identity{ID: id, Username: claims.Username, Role: claims.Role}, nil
}
