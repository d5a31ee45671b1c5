// Package imageimport samples geotagged frames from an imported track's
// source clip and stores them as the track's images.
//
// A run locates the track, invokes mapillary_tools through the extract
// package, decodes the image description manifest and replaces the track's
// image set in one transaction, so a redelivered job leaves the same rows
// behind. No failure in this stage is classified as unrecoverable; the
// workflow manager retries until attempts run out.
package imageimport
