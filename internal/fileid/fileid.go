// Package fileid provides deterministic content digests for input documents.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const prefix = "sha256:"

// Digest returns a stable identifier for the content of the file at path.
// Same bytes always yield the same digest regardless of file name or location.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return DigestReader(f)
}

// DigestReader returns the digest of everything read from r.
func DigestReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return prefix + hex.EncodeToString(h.Sum(nil)), nil
}
