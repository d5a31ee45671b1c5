package tracks

import (
	"errors"
	"time"

	"github.com/paulmach/orb"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when a unique value is already present.
	ErrExists = errors.New("already exists")
	// ErrInvalidFilter is returned for contradictory list filters.
	ErrInvalidFilter = errors.New("invalid filter")
)

// Track is a cleaned, simplified GPS line imported from one source file.
type Track struct {
	ID          int64
	Name        string
	FilePath    string
	FileHash    string
	CaptureDate time.Time
	Geometry    orb.LineString
	Bound       orb.Bound
	ImportDate  time.Time
	UpdatedAt   time.Time
	HasImages   bool
}

// TrackInput carries the fields written by an import. Identity is the file path.
type TrackInput struct {
	Name        string
	FilePath    string
	FileHash    string
	CaptureDate time.Time
	Geometry    orb.LineString
}

// Image is one panorama frame positioned along a track.
type Image struct {
	ID             int64
	TrackID        int64
	SequenceNumber int
	CaptureDate    time.Time
	Point          orb.Point
	Heading        *float64
	FilePath       string
}

// ImageInput is an image row before persistence.
type ImageInput struct {
	SequenceNumber int
	CaptureDate    time.Time
	Point          orb.Point
	Heading        *float64
	FilePath       string
}

// ImportDirectory is a watched directory.
type ImportDirectory struct {
	ID        int64
	Path      string
	CreatedAt time.Time
}

// NotificationTarget is an apprise URL that receives notifications.
type NotificationTarget struct {
	ID         int64
	AppriseURL string
	CreatedAt  time.Time
}

// Order controls the capture date ordering of List.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// Filter narrows List. Zero values leave a dimension unconstrained.
type Filter struct {
	Start *time.Time
	End   *time.Time
	BBox  *orb.Bound
	Order Order
	Limit int
}

// Validate rejects a start after end and unknown orders.
func (f Filter) Validate() error {
	if f.Start != nil && f.End != nil && f.Start.After(*f.End) {
		return errors.Join(ErrInvalidFilter, errors.New("start must be less than or equal to end"))
	}
	switch f.Order {
	case "", OrderAsc, OrderDesc:
	default:
		return errors.Join(ErrInvalidFilter, errors.New("order must be asc or desc"))
	}
	if f.BBox != nil && (f.BBox.Min[0] > f.BBox.Max[0] || f.BBox.Min[1] > f.BBox.Max[1]) {
		return errors.Join(ErrInvalidFilter, errors.New("bbox minimum must not exceed maximum"))
	}
	return nil
}
