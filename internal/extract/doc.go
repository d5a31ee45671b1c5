// Package extract wraps the two converters the pipeline shells out to.
//
// GPXExtractor runs gopro2gpx against a 360° clip and yields the path of the
// GPX file it wrote beside the source. FrameExtractor runs mapillary_tools
// over the same clip and yields the directory holding sampled frames plus the
// image description manifest that ParseManifest reads.
package extract
