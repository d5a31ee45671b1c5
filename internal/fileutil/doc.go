// Package fileutil provides content hashing and filesystem timestamp helpers.
package fileutil
