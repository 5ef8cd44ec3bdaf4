// Package digest computes streaming SHA-256 content digests for archive
// files. Files are read in fixed-size chunks so memory use stays flat
// regardless of file size.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// chunkSize is the read granularity. One chunk plus the hash state is
// the only per-file memory the digest ever holds.
const chunkSize = 4096

// Func is the signature of a digest computation. The verification
// engine takes one of these so tests can substitute a counting stub.
type Func func(path string) (string, error)

// File computes the SHA-256 digest of the file at path and returns it
// as a 64-character lowercase hex string. Any failure to open or read
// the file is returned as an error; there is no sentinel digest value,
// so "digest unavailable" can never be confused with the digest of
// empty content.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
