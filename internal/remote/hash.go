package remote

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/torfstack/sideload/internal/logging"
)

// FileSHA1 streams the file at path through SHA-1 and returns lower case hex.
func FileSHA1(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("could not open '%s' for hashing: %w", path, err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			logging.Debugf("Could not close '%s' after hashing: %s", path, err)
		}
	}(f)

	h := sha1.New()
	if _, err = io.Copy(h, f); err != nil {
		return "", fmt.Errorf("could not hash '%s': %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func ensureSHA1(req Request) (string, error) {
	if req.SHA1 != "" {
		return req.SHA1, nil
	}
	logging.Debugf("Hashing %s", req.Path)
	return FileSHA1(req.Path)
}
