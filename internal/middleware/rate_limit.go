package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/gema-grader/internal/utils"
)

// ActionRateLimit caps how often one grader may launch actions. Requests
// without an authenticated user are keyed by client IP.
func ActionRateLimit(scope string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 30
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			user := c.Locals("user_id")
			if user == nil {
				return fmt.Sprintf("%s:ip:%s", scope, c.IP())
			}
			return fmt.Sprintf("%s:user:%v", scope, user)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendError(c, fiber.StatusTooManyRequests, "too many action launches, slow down")
		},
	})
}
