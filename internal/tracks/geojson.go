package tracks

import (
	"time"

	"github.com/paulmach/orb/geojson"
)

// FeatureCollection renders tracks as LineString features.
func FeatureCollection(tracks []*Track) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, track := range tracks {
		if track == nil {
			continue
		}
		feature := geojson.NewFeature(track.Geometry)
		feature.ID = track.ID
		feature.Properties = geojson.Properties{
			"id":          track.ID,
			"name":        track.Name,
			"captureDate": track.CaptureDate.UTC().Format(time.RFC3339Nano),
			"importDate":  track.ImportDate.UTC().Format(time.RFC3339Nano),
			"hasImages":   track.HasImages,
		}
		fc.Append(feature)
	}
	return fc
}

// ImageFeatureCollection renders frames as Point features.
func ImageFeatureCollection(images []*Image) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, image := range images {
		if image == nil {
			continue
		}
		feature := geojson.NewFeature(image.Point)
		feature.ID = image.ID
		props := geojson.Properties{
			"id":             image.ID,
			"trackId":        image.TrackID,
			"sequenceNumber": image.SequenceNumber,
			"captureDate":    image.CaptureDate.UTC().Format(time.RFC3339Nano),
		}
		if image.Heading != nil {
			props["heading"] = *image.Heading
		}
		feature.Properties = props
		fc.Append(feature)
	}
	return fc
}
