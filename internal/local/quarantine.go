package local

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/torfstack/sideload/internal/logging"
	"github.com/torfstack/sideload/internal/util"
)

// Quarantine is the holding directory for files that ran out of attempts.
type Quarantine struct {
	Dir string
}

func (q Quarantine) Ensure() error {
	if _, err := os.Stat(q.Dir); err == nil {
		return nil
	}
	if err := os.MkdirAll(q.Dir, 0755); err != nil {
		return fmt.Errorf("could not create quarantine directory '%s': %w", q.Dir, err)
	}
	logging.Infof("Created quarantine directory %s", q.Dir)
	return nil
}

// Move relocates path into the quarantine directory without overwriting
// anything already there and returns the new location.
func (q Quarantine) Move(path string) (string, error) {
	dst, err := util.FreePath(filepath.Join(q.Dir, filepath.Base(path)))
	if err != nil {
		return "", fmt.Errorf("could not pick quarantine path for '%s': %w", path, err)
	}
	if err = util.MoveFile(path, dst); err != nil {
		return "", fmt.Errorf("could not move '%s' to '%s': %w", path, dst, err)
	}
	return dst, nil
}
