package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"panotrack/internal/config"
	"panotrack/internal/events"
	"panotrack/internal/logging"
)

const userAgent = "panotrack/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventTrackImported  Event = "track_imported"
	EventImagesImported Event = "images_imported"
	EventImportFailed   Event = "import_failed"
	EventTest           Event = "test"
)

// Payload carries event specific values used to render the message.
type Payload map[string]any

// Message is a rendered notification handed to sinks.
type Message struct {
	Event    Event
	Title    string
	Body     string
	Tags     []string
	Priority string
}

// Sink delivers a rendered message over one transport.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Service defines the notification surface exposed to other components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// Publisher is the bus surface used by the echo sink.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (events.Event, error)
}

// Option customizes the service built by NewService.
type Option func(*service)

// WithSink adds a delivery transport.
func WithSink(sink Sink) Option {
	return func(s *service) {
		if sink != nil {
			s.sinks = append(s.sinks, sink)
		}
	}
}

// WithEcho mirrors every delivered message onto the bus as notification.send.
func WithEcho(publisher Publisher) Option {
	return WithSink(echoSink{publisher: publisher})
}

// WithLogger sets the logger used for delivery traces.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) { s.logger = logging.NewComponentLogger(logger, "notifications") }
}

type service struct {
	sinks   []Sink
	enabled map[Event]bool
	logger  *slog.Logger
}

// NewService builds a notification service with an ntfy sink when a topic is
// configured, plus any sinks supplied through opts. Per-event toggles come
// from the [notifications] config section; test messages are always sent.
func NewService(cfg *config.Config, opts ...Option) Service {
	s := &service{
		enabled: map[Event]bool{
			EventTrackImported:  cfg.Notifications.TrackImported,
			EventImagesImported: cfg.Notifications.ImagesImported,
			EventImportFailed:   cfg.Notifications.ImportFailed,
			EventTest:           true,
		},
		logger: logging.NewNop(),
	}
	if sink := newNtfySink(cfg); sink != nil {
		s.sinks = append(s.sinks, sink)
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.sinks) == 0 {
		return noopService{}
	}
	return s
}

func (s *service) Publish(ctx context.Context, event Event, payload Payload) error {
	if !s.enabled[event] {
		return nil
	}
	msg, ok := Render(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		s.logger.Debug("notification delivered",
			logging.String("event", string(event)),
			logging.String("sink", sink.Name()),
		)
	}
	return errors.Join(errs...)
}

// Render formats event into a message. It reports false for unknown events.
func Render(event Event, payload Payload) (Message, bool) {
	switch event {
	case EventTrackImported:
		return Message{
			Event: event,
			Title: "Track Imported",
			Body:  fmt.Sprintf("%s has successfully been imported", payload.String("name")),
			Tags:  []string{"panotrack", "track", "imported"},
		}, true
	case EventImagesImported:
		return Message{
			Event: event,
			Title: "Images Imported",
			Body:  fmt.Sprintf("%s: %d images imported", payload.String("name"), payload.Int("imageCount")),
			Tags:  []string{"panotrack", "images", "imported"},
		}, true
	case EventImportFailed:
		return Message{
			Event:    event,
			Title:    "Track Import Failed",
			Body:     fmt.Sprintf("%s failed to import: %s", payload.String("filePath"), payload.String("error")),
			Tags:     []string{"panotrack", "import", "failed"},
			Priority: "high",
		}, true
	case EventTest:
		return Message{
			Event:    event,
			Title:    "panotrack - Test",
			Body:     "Notification system test",
			Tags:     []string{"panotrack", "test"},
			Priority: "low",
		}, true
	default:
		return Message{}, false
	}
}

// String returns the trimmed string form of key, or "" when absent.
func (p Payload) String(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Int returns key as an integer, or 0 when absent or not numeric.
func (p Payload) Int(key string) int {
	if p == nil {
		return 0
	}
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

type echoSink struct {
	publisher Publisher
}

func (echoSink) Name() string { return "bus" }

func (e echoSink) Send(ctx context.Context, msg Message) error {
	if e.publisher == nil {
		return nil
	}
	_, err := e.publisher.Publish(ctx, events.TopicNotificationSend, events.NotificationSent{
		Event:   string(msg.Event),
		Title:   msg.Title,
		Message: msg.Body,
	})
	return err
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
