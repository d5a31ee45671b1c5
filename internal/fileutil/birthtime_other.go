//go:build !linux

package fileutil

import (
	"os"
	"time"
)

// BirthTime returns the modification time of path on platforms without statx.
func BirthTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
