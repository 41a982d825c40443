package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "grader-secret"

func protectedApp() *fiber.App {
	app := fiber.New()
	app.Use(JWTProtected(testSecret))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"id":    c.Locals("user_id"),
			"login": c.Locals("user_login"),
			"role":  RoleFromContext(c),
		})
	})
	return app
}

func call(t *testing.T, app *fiber.App, authorization string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestJWTProtectedAcceptsIssuedToken(t *testing.T) {
	token, err := IssueToken(testSecret, "17", "tbeck", "Grader", time.Hour)
	require.NoError(t, err)

	resp := call(t, protectedApp(), "bearer "+token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, decodeJSON(resp, &body))
	require.Equal(t, map[string]string{"id": "17", "login": "tbeck", "role": "grader"}, body)
}

func TestJWTProtectedRejects(t *testing.T) {
	app := protectedApp()

	expired, err := IssueToken(testSecret, "17", "", "grader", -time.Minute)
	require.NoError(t, err)
	wrongKey, err := IssueToken("other", "17", "", "grader", time.Hour)
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, GraderClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "17"},
		Role:             "grader",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":   "",
		"scheme":    "Basic abc",
		"expired":   "Bearer " + expired,
		"wrong key": "Bearer " + wrongKey,
		"no expiry": "Bearer " + noExpiry,
	} {
		t.Run(name, func(t *testing.T) {
			resp := call(t, app, header)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestGraderClaimsEffectiveRole(t *testing.T) {
	require.Equal(t, "admin", GraderClaims{Roles: []string{" ", "Admin"}}.EffectiveRole())
	require.Equal(t, "grader", GraderClaims{Role: "GRADER", Roles: []string{"admin"}}.EffectiveRole())
	require.Empty(t, GraderClaims{}.EffectiveRole())
}

func TestIssueTokenValidatesInput(t *testing.T) {
	_, err := IssueToken("", "1", "", "grader", time.Hour)
	require.Error(t, err)
	_, err = IssueToken(testSecret, " ", "", "grader", time.Hour)
	require.Error(t, err)
}

func decodeJSON(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}
