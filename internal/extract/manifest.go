package extract

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ImageDescription is one manifest entry.
type ImageDescription struct {
	Filename       string          `json:"filename"`
	CaptureTime    string          `json:"MAPCaptureTime"`
	Latitude       *float64        `json:"MAPLatitude"`
	Longitude      *float64        `json:"MAPLongitude"`
	CompassHeading *CompassHeading `json:"MAPCompassHeading,omitempty"`
	Error          json.RawMessage `json:"error,omitempty"`
}

// CompassHeading carries the optional heading of a frame.
type CompassHeading struct {
	TrueHeading     *float64 `json:"TrueHeading"`
	MagneticHeading *float64 `json:"MagneticHeading,omitempty"`
}

// Heading returns the true heading when the entry has one.
func (d ImageDescription) Heading() *float64 {
	if d.CompassHeading == nil || d.CompassHeading.TrueHeading == nil {
		return nil
	}
	h := *d.CompassHeading.TrueHeading
	return &h
}

// Failed reports whether mapillary_tools recorded an error for this entry.
// Failed entries are skipped, so sequence numbers count positions among the kept entries.
func (d ImageDescription) Failed() bool {
	trimmed := strings.TrimSpace(string(d.Error))
	return trimmed != "" && trimmed != "null"
}

// ParseManifestFile reads the manifest at path.
func ParseManifestFile(path string) ([]ImageDescription, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer file.Close()
	return ParseManifest(file)
}

// ParseManifest decodes the manifest array. Entries flagged with an error are
// dropped; the rest must carry a capture time and coordinates.
func ParseManifest(r io.Reader) ([]ImageDescription, error) {
	var entries []ImageDescription
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	out := make([]ImageDescription, 0, len(entries))
	for i, entry := range entries {
		if entry.Failed() {
			continue
		}
		if strings.TrimSpace(entry.Filename) == "" {
			return nil, fmt.Errorf("manifest entry %d: missing filename", i)
		}
		if strings.TrimSpace(entry.CaptureTime) == "" {
			return nil, fmt.Errorf("manifest entry %d (%s): missing MAPCaptureTime", i, entry.Filename)
		}
		if entry.Latitude == nil || entry.Longitude == nil {
			return nil, fmt.Errorf("manifest entry %d (%s): missing coordinates", i, entry.Filename)
		}
		out = append(out, entry)
	}
	return out, nil
}

// ParseCaptureTime converts YYYY_MM_DD_HH_MM_SS_mmm into a time in loc by
// reading it as YYYY-MM-DDTHH:MM:SS.mmm.
func ParseCaptureTime(value string, loc *time.Location) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(value), "_")
	if len(parts) != 7 {
		return time.Time{}, fmt.Errorf("capture time %q: expected 7 underscore separated fields", value)
	}
	iso := fmt.Sprintf("%s-%s-%sT%s:%s:%s.%s", parts[0], parts[1], parts[2], parts[3], parts[4], parts[5], parts[6])
	if loc == nil {
		loc = time.Local
	}
	parsed, err := time.ParseInLocation("2006-01-02T15:04:05.000", iso, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("capture time %q: %w", value, err)
	}
	return parsed, nil
}
