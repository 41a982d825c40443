package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/observability"
)

const (
	// EventActionPerformed is emitted after every grading action attempt.
	EventActionPerformed = "action.performed"

	activityStreamMaxLen = 10000
)

// ActivityEvent records one grading action attempt.
type ActivityEvent struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Type       string    `json:"type"`
	PartID     uint      `json:"part_id"`
	GroupIDs   []uint    `json:"group_ids"`
	Mode       string    `json:"mode"`
	Action     string    `json:"action"`
	Result     string    `json:"result"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ActivityPublisher fans grading activity out to other grader instances and dashboards.
type ActivityPublisher interface {
	Publish(ctx context.Context, event ActivityEvent) error
}

type activityPublisher struct {
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	nodeID      string
}

// NewActivityPublisher publishes to the "<channelBase>:activity" Redis stream and the
// "<channelBase>.activity" NATS subject. Either transport may be nil.
func NewActivityPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) ActivityPublisher {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":activity"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".activity"
	}

	return &activityPublisher{
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "activity_publisher").Logger(),
		nodeID:      uuid.NewString(),
	}
}

func (p *activityPublisher) Publish(ctx context.Context, event ActivityEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Type == "" {
		event.Type = EventActionPerformed
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	event.Source = p.nodeID

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error

	if p.redis != nil && p.redisStream != "" {
		err := p.redis.XAdd(ctx, &redis.XAddArgs{
			Stream: p.redisStream,
			MaxLen: activityStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"type": event.Type, "event": string(payload)},
		}).Err()
		p.record("redis", err)
		if err != nil {
			errs = append(errs, err)
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		err := p.nats.Publish(p.natsSubject, payload)
		p.record("nats", err)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (p *activityPublisher) record(transport string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		p.logger.Warn().Err(err).Str("transport", transport).Msg("failed to publish grading activity")
	}
	observability.ActivityPublished().WithLabelValues(transport, result).Inc()
}
