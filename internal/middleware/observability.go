package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/action"
	"github.com/noah-isme/gema-grader/internal/observability"
)

const gradingPrefix = "/api/v1/grading"

// gradingRequest is what the middleware knows about a finished grading request.
type gradingRequest struct {
	method  string
	route   string
	mode    string
	status  int
	elapsed time.Duration
}

// Observability records request metrics for the grading API and logs each request
// with the part, group, event and mode it addressed.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()
	logger = logger.With().Str("component", "grading_requests").Logger()

	return func(c *fiber.Ctx) error {
		if !strings.HasPrefix(c.Path(), gradingPrefix) {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		req := gradingRequest{
			method:  c.Method(),
			route:   routeTemplate(c),
			mode:    modeLabel(c.Params("mode")),
			status:  c.Response().StatusCode(),
			elapsed: time.Since(start),
		}
		req.record()
		req.log(logger, c)

		return err
	}
}

func (r gradingRequest) record() {
	status := strconv.Itoa(r.status)
	observability.Requests().WithLabelValues(r.method, r.route, r.mode, status).Inc()
	observability.RequestLatency().WithLabelValues(r.method, r.route).Observe(r.elapsed.Seconds())
	if r.status >= fiber.StatusBadRequest {
		observability.RequestErrors().WithLabelValues(r.method, r.route, r.mode, status).Inc()
	}
}

func (r gradingRequest) log(logger zerolog.Logger, c *fiber.Ctx) {
	var event *zerolog.Event
	switch {
	case r.status >= fiber.StatusInternalServerError:
		event = logger.Error()
	case r.status >= fiber.StatusBadRequest:
		event = logger.Warn()
	default:
		event = logger.Info()
	}

	event = event.
		Str("correlation_id", GetCorrelationID(c)).
		Str("method", r.method).
		Str("route", r.route).
		Int("status", r.status).
		Float64("latency_ms", float64(r.elapsed)/float64(time.Millisecond)).
		Str("latency_bucket", latencyBucket(r.elapsed))

	for _, param := range []string{"partID", "groupID", "eventID"} {
		if v := c.Params(param); v != "" {
			event = event.Str(param, v)
		}
	}
	if r.mode != "none" {
		event = event.Str("mode", r.mode)
	}
	if user, ok := c.Locals("user_id").(string); ok && user != "" {
		event = event.Str("user_id", user)
	}

	event.Msg("grading request completed")
}

// modeLabel bounds the mode label to the modes the action framework accepts.
func modeLabel(raw string) string {
	if raw == "" {
		return "none"
	}
	mode, err := action.ParseMode(raw)
	if err != nil {
		return "invalid"
	}
	return string(mode)
}

func routeTemplate(c *fiber.Ctx) string {
	if c.Route() != nil && c.Route().Path != "" {
		return c.Route().Path
	}
	return c.Path()
}

func latencyBucket(duration time.Duration) string {
	switch {
	case duration <= 25*time.Millisecond:
		return "<=25ms"
	case duration <= 100*time.Millisecond:
		return "<=100ms"
	case duration <= 500*time.Millisecond:
		return "<=500ms"
	case duration <= 2*time.Second:
		return "<=2s"
	default:
		return ">2s"
	}
}
