package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-grader/internal/utils"
)

// GraderClaims is the token payload accepted by the grading API. Subject is
// the grader's identifier; Role or the first entry of Roles grants access.
type GraderClaims struct {
	jwt.RegisteredClaims
	Login string   `json:"login,omitempty"`
	Role  string   `json:"role,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// EffectiveRole returns the normalised role the claims grant.
func (c GraderClaims) EffectiveRole() string {
	if role := normalizeRole(c.Role); role != "" {
		return role
	}
	for _, r := range c.Roles {
		if role := normalizeRole(r); role != "" {
			return role
		}
	}
	return ""
}

// IssueToken signs an HS256 grader token valid for ttl.
func IssueToken(secret, subject, login, role string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret must not be empty")
	}
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("token subject must not be empty")
	}

	now := time.Now()
	claims := GraderClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Login: login,
		Role:  role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// JWTProtected validates the bearer token and stores the grader's identity
// in the "user_id", "user_login" and "user_role" locals.
func JWTProtected(secret string) fiber.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}), jwt.WithExpirationRequired())

	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "bearer token required")
		}

		var claims GraderClaims
		token, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return utils.SendError(c, fiber.StatusUnauthorized, "token expired")
		case err != nil || !token.Valid:
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		if claims.Subject == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "token subject missing")
		}

		c.Locals("user_id", claims.Subject)
		if claims.Login != "" {
			c.Locals("user_login", claims.Login)
		}
		if role := claims.EffectiveRole(); role != "" {
			c.Locals("user_role", role)
		}

		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func normalizeRole(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
