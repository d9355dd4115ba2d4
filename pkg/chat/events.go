package chat

import (
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TimelineTopic is the watermill topic timeline change events are published
// on.
const TimelineTopic = "chat.timeline"

type EventType string

const (
	EventSessionCreated EventType = "session-created"
	EventSessionExpired EventType = "session-expired"
	EventSessionEnded   EventType = "session-ended"

	EventOptimisticApplied EventType = "optimistic-applied"
	EventSendCommitted     EventType = "send-committed"
	EventSendRolledBack    EventType = "send-rolled-back"
	EventSuperseded        EventType = "superseded"
	EventStaleDropped      EventType = "stale-dropped"
	EventReconciled        EventType = "reconciled"
)

// Event describes one timeline change. MessageID is the affected entry where
// that makes sense (the provisional ID for optimistic transitions).
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	MessageID string    `json:"message_id,omitempty"`
	Time      time.Time `json:"time"`
}

// ParseEvent decodes a timeline event from a watermill message payload.
func ParseEvent(payload []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// publisher is the sink the cache and lifecycle components emit into. The
// zero value (nil) drops events, which keeps the engine usable without a
// router.
type publisher interface {
	Publish(topic string, messages ...*message.Message) error
}

func publishEvent(p publisher, e Event) {
	if p == nil {
		return
	}
	b, err := json.Marshal(e)
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal timeline event")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), b)
	if err := p.Publish(TimelineTopic, msg); err != nil {
		log.Warn().Err(err).Str("topic", TimelineTopic).Msg("failed to publish timeline event")
	}
}

// watermillLogger bridges watermill's logging into zerolog. Watermill's INFO
// level is mapped down to debug because it is chatty.
type watermillLogger struct {
	logger zerolog.Logger
}

func newWatermillLogger(logger zerolog.Logger) watermill.LoggerAdapter {
	return &watermillLogger{logger: logger}
}

func (w *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.logger.Error().Fields(map[string]any(fields)).Err(err).Msg(msg)
}

func (w *watermillLogger) Info(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(map[string]any(fields)).Msg(msg)
}

func (w *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(map[string]any(fields)).Msg(msg)
}

func (w *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.logger.Trace().Fields(map[string]any(fields)).Msg(msg)
}

func (w *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{logger: w.logger.With().Fields(map[string]any(fields)).Logger()}
}
