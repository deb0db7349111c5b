package local

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/torfstack/sideload/internal/logging"
	"github.com/torfstack/sideload/internal/util"
)

// StabilityChecker decides whether a file is still being written by
// comparing its size across a wait interval.
type StabilityChecker struct {
	Interval  time.Duration
	MaxProbes int

	// Sleep defaults to util.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Stable reports whether the size of path stayed the same across one
// interval, trying up to MaxProbes times. A file that disappears yields an
// error matching fs.ErrNotExist.
func (s StabilityChecker) Stable(ctx context.Context, path string) (bool, error) {
	sleep := s.Sleep
	if sleep == nil {
		sleep = util.Sleep
	}

	for probe := 1; probe <= s.MaxProbes; probe++ {
		before, err := size(path)
		if err != nil {
			return false, err
		}
		if err = sleep(ctx, s.Interval); err != nil {
			return false, err
		}
		after, err := size(path)
		if err != nil {
			return false, err
		}
		if before == after {
			logging.Debugf("File size stable: %s", path)
			return true, nil
		}
		logging.Warnf("File size still changing, probe %d/%d: %s", probe, s.MaxProbes, path)
	}
	logging.Errorf("File size never settled, skipping for now: %s", path)
	return false, nil
}

func size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("could not stat '%s': %w", path, err)
	}
	return info.Size(), nil
}
