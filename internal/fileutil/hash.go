package fileutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const hashChunkSize = 1 << 20

// Hasher computes content digests. The zero value is ready to use.
type Hasher struct{}

// HashFile returns the hex-encoded SHA-256 digest of the file at path.
func (Hasher) HashFile(ctx context.Context, path string) (string, error) {
	return HashFile(ctx, path)
}

// HashFile streams path through SHA-256 without buffering the whole file.
func HashFile(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	sum, err := HashReader(ctx, file)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}

// HashReader streams r through SHA-256, checking ctx between chunks.
func HashReader(ctx context.Context, r io.Reader) (string, error) {
	hasher := sha256.New()
	buf := make([]byte, hashChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := r.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
