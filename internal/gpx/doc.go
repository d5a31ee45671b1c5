// Package gpx turns converter output into a clean track polyline.
//
// Parsing reads the first segment of the first track. Cleaning then runs in
// three passes: Smooth replaces implausibly fast fixes with interpolated
// points, Simplify drops points that deviate less than a metre from the
// Ramer–Douglas–Peucker chord, and the result must keep at least MinPoints
// vertices to be worth storing.
package gpx
