package events

// Topics published by the import pipeline.
const (
	TopicTrackImported          = "track.imported"
	TopicTrackImagesImported    = "track.imagesImported"
	TopicTrackImportFailure     = "track.importFailure"
	TopicImportDirectoryCreated = "importDirectory.created"
	TopicImportDirectoryDeleted = "importDirectory.deleted"
	TopicNotificationSend       = "notification.send"

	// TopicAll subscribes to every topic.
	TopicAll = "*"
)

// TrackImported is published after a track has been persisted.
type TrackImported struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ImagesImported is published after the frames of a track have been persisted.
type ImagesImported struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ImageCount int    `json:"imageCount"`
}

// ImportFailure is published when a track import fails terminally.
type ImportFailure struct {
	FilePath string `json:"filePath"`
	Error    string `json:"error"`
}

// ImportDirectoryChanged is published when a watched directory is added or removed.
type ImportDirectoryChanged struct {
	ID   int64  `json:"id"`
	Path string `json:"path"`
}

// NotificationSent mirrors a delivered notification onto the stream.
type NotificationSent struct {
	Event   string `json:"event"`
	Title   string `json:"title"`
	Message string `json:"message"`
}
