package merge

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// fingerprintChunk bounds the amount of a file held in memory while hashing.
const fingerprintChunk = 4096

// Fingerprint returns the hex-encoded SHA-256 digest of the file at path.
// The file is streamed in fixed-size chunks so large entries are never loaded whole.
func Fingerprint(fsys afero.Fs, path string) (string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, fingerprintChunk)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: read %s: %w", ErrIO, path, err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
