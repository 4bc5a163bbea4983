package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/quickquid/internal/apperr"
	"github.com/sudo-init-do/quickquid/internal/identity"
)

// Context keys set on the echo context after authentication
const (
	ContextKeyUserID = "user_id"
	ContextKeyRole   = "role"
)

// Claims carried by access tokens issued by the identity provider
type Claims struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	Verified bool   `json:"verified"`
	jwt.RegisteredClaims
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// JWTAuthenticator validates HMAC-signed bearer tokens
type JWTAuthenticator struct {
	secret []byte
	issuer string
}

func NewJWTAuthenticator(secret, issuer string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret), issuer: issuer}
}

// Middleware resolves the bearer token into an identity.Identity and stores
// it on the request context. Requests without a valid token are rejected.
func (j *JWTAuthenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, err := extractBearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return apperr.Unauthenticated("missing or malformed Authorization header")
			}
			who, err := j.Identify(tokenStr)
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					return apperr.Unauthenticated("token has expired")
				}
				return apperr.Unauthenticated("invalid token")
			}

			c.Set(ContextKeyUserID, who.UserID)
			c.Set(ContextKeyRole, string(who.Role))
			c.SetRequest(c.Request().WithContext(identity.WithIdentity(c.Request().Context(), who)))
			return next(c)
		}
	}
}

// Optional attaches an identity when a bearer token is present and lets
// anonymous requests through. A malformed or invalid token is still rejected.
func (j *JWTAuthenticator) Optional() echo.MiddlewareFunc {
	required := j.Middleware()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		authed := required(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
				return next(c)
			}
			return authed(c)
		}
	}
}

// Identify validates tokenStr and converts its claims
func (j *JWTAuthenticator) Identify(tokenStr string) (identity.Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return identity.Identity{}, ErrTokenExpired
		}
		return identity.Identity{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return identity.Identity{}, ErrInvalidToken
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	role, ok := identity.ParseRole(claims.Role)
	if userID == "" || !ok {
		return identity.Identity{}, ErrInvalidToken
	}
	return identity.Identity{UserID: userID, Role: role, Verified: claims.Verified}, nil
}

// Issue signs a token for who. Used by tooling and tests; production tokens
// come from the identity provider.
func (j *JWTAuthenticator) Issue(who identity.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   who.UserID,
		Role:     string(who.Role),
		Verified: who.Verified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   who.UserID,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

func extractBearerToken(header string) (string, error) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(header[len(prefix):]), nil
}
