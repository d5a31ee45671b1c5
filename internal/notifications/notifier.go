package notifications

import (
	"context"
	"log/slog"

	"panotrack/internal/events"
	"panotrack/internal/logging"
)

// Subscriber is the bus surface ImportNotifier attaches to.
type Subscriber interface {
	Subscribe(topic, name string, handler events.Handler) func()
}

// ImportNotifier turns import signals into notifications.
type ImportNotifier struct {
	service Service
	logger  *slog.Logger
}

// NewImportNotifier wraps service.
func NewImportNotifier(service Service, logger *slog.Logger) *ImportNotifier {
	return &ImportNotifier{service: service, logger: logging.NewComponentLogger(logger, "notifications")}
}

// Attach subscribes to the import topics and returns a function detaching all of them.
func (n *ImportNotifier) Attach(bus Subscriber) func() {
	cancels := []func(){
		bus.Subscribe(events.TopicTrackImported, "notify-track-imported", n.handleTrackImported),
		bus.Subscribe(events.TopicTrackImagesImported, "notify-images-imported", n.handleImagesImported),
		bus.Subscribe(events.TopicTrackImportFailure, "notify-import-failure", n.handleImportFailure),
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

func (n *ImportNotifier) handleTrackImported(ctx context.Context, evt events.Event) error {
	var data events.TrackImported
	if err := evt.Decode(&data); err != nil {
		n.dropMalformed(evt, err)
		return nil
	}
	return n.service.Publish(ctx, EventTrackImported, Payload{"id": data.ID, "name": data.Name})
}

func (n *ImportNotifier) handleImagesImported(ctx context.Context, evt events.Event) error {
	var data events.ImagesImported
	if err := evt.Decode(&data); err != nil {
		n.dropMalformed(evt, err)
		return nil
	}
	return n.service.Publish(ctx, EventImagesImported, Payload{"id": data.ID, "name": data.Name, "imageCount": data.ImageCount})
}

func (n *ImportNotifier) handleImportFailure(ctx context.Context, evt events.Event) error {
	var data events.ImportFailure
	if err := evt.Decode(&data); err != nil {
		n.dropMalformed(evt, err)
		return nil
	}
	return n.service.Publish(ctx, EventImportFailed, Payload{"filePath": data.FilePath, "error": data.Error})
}

// dropMalformed logs a payload that cannot decode. It is not retried.
func (n *ImportNotifier) dropMalformed(evt events.Event, err error) {
	logging.WarnWithContext(n.logger, "signal payload not decodable", "notification_skipped",
		logging.String("topic", evt.Topic),
		logging.Error(err),
		logging.String(logging.FieldImpact, "notification not sent"),
	)
}
