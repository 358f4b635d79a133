package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const actorKey = "auth_actor"

// ActorMiddleware identifies the caller for audit stamping. Requests
// without a bearer token act as the default actor; a token that fails
// validation is rejected.
type ActorMiddleware struct {
	tokens       *TokenManager
	defaultActor string
}

// NewActorMiddleware constructs middleware. A nil token manager ignores
// Authorization headers.
func NewActorMiddleware(tokens *TokenManager, defaultActor string) *ActorMiddleware {
	if strings.TrimSpace(defaultActor) == "" {
		defaultActor = "system"
	}
	return &ActorMiddleware{tokens: tokens, defaultActor: defaultActor}
}

// Handle resolves the actor and stores it in the request locals.
func (m *ActorMiddleware) Handle(c *fiber.Ctx) error {
	actor := m.defaultActor
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader != "" && m.tokens != nil {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return apperrors.NewUnauthorized("invalid authorization header")
		}
		claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			return apperrors.NewUnauthorized("invalid token")
		}
		actor = claims.Subject
	}
	c.Locals(actorKey, actor)
	return c.Next()
}

// ActorFromContext returns the actor resolved by ActorMiddleware.
func ActorFromContext(c *fiber.Ctx) string {
	if actor, ok := c.Locals(actorKey).(string); ok {
		return actor
	}
	return ""
}
