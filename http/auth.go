package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"gallery/entity"
)

const actorContextKey = "actor"

type actorClaims struct {
	Role entity.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuth accepts HS256 Bearer tokens carrying the user ID in "sub" and its role in "role".
func JWTAuth(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			var claims actorClaims
			_, err := jwt.ParseWithClaims(
				strings.TrimPrefix(header, "Bearer "),
				&claims,
				func(t *jwt.Token) (any, error) {
					return secret, nil
				},
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			if claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has no subject")
			}
			if claims.Role != entity.RoleAdmin && claims.Role != entity.RoleUser {
				return echo.NewHTTPError(http.StatusUnauthorized, fmt.Sprintf("unknown role %q", claims.Role))
			}

			c.Set(actorContextKey, entity.Actor{UserID: claims.Subject, Role: claims.Role})
			return next(c)
		}
	}
}

func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !actorFromContext(c).IsAdmin() {
			return echo.NewHTTPError(http.StatusForbidden, "admin role required")
		}
		return next(c)
	}
}

func actorFromContext(c echo.Context) entity.Actor {
	actor, _ := c.Get(actorContextKey).(entity.Actor)
	return actor
}

// IssueToken signs a token JWTAuth accepts.
func IssueToken(secret []byte, actor entity.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := actorClaims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
