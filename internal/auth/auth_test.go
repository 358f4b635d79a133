package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	tm := NewTokenManager("secret", 30, clk)

	token, expires, err := tm.GenerateToken("alice", "Alice Agent")
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(30*time.Minute), expires)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "Alice Agent", claims.Name)

	clk.Add(31 * time.Minute)
	_, err = tm.ParseToken(token)
	assert.Error(t, err)

	_, err = NewTokenManager("other", 30, clk).ParseToken(token)
	assert.Error(t, err)

	_, _, err = tm.GenerateToken(" ", "")
	assert.Error(t, err)
}

func TestActorMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 30, nil)
	token, _, err := tm.GenerateToken("bob", "")
	require.NoError(t, err)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	app.Use(NewActorMiddleware(tm, "").Handle)
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(ActorFromContext(c))
	})

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{name: "anonymous", status: fiber.StatusOK, body: "system"},
		{name: "bearer", header: "Bearer " + token, status: fiber.StatusOK, body: "bob"},
		{name: "garbage token", header: "Bearer nope", status: fiber.StatusUnauthorized, body: apperrors.CodeUnauthorized},
		{name: "wrong scheme", header: "Basic Ym9iOg==", status: fiber.StatusUnauthorized, body: apperrors.CodeUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
			buf := make([]byte, 64)
			n, _ := resp.Body.Read(buf)
			assert.Equal(t, tc.body, string(buf[:n]))
		})
	}
}
