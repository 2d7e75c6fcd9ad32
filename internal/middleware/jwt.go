// Package middleware contains reusable HTTP middleware: holder
// identity extraction from bearer tokens and the Redis token-bucket
// rate limiter.
package middleware

import (
    "net/http"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

// holderKey is the echo context key under which the authenticated
// holder ID is stored.
const holderKey = "holder_id"

// HolderAuth returns an Echo middleware that validates a Bearer
// access token and injects the token's subject as the holder ID into
// the request context.  Token issuance belongs to the external auth
// service; this middleware only verifies the HS256 signature with the
// shared secret and extracts the identity every lock operation is
// keyed by.
func HolderAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                // Only HMAC tokens are accepted; anything else is an
                // attempt to downgrade the verification.
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }
            sub, ok := claims["sub"].(string)
            if !ok || sub == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token has no subject"})
            }
            c.Set(holderKey, sub)
            return next(c)
        }
    }
}

// HolderID returns the authenticated holder ID from the context, or
// an empty string when the request passed no valid token.
func HolderID(c echo.Context) string {
    if v := c.Get(holderKey); v != nil {
        if s, ok := v.(string); ok {
            return s
        }
    }
    return ""
}
