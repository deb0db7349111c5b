package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/torfstack/sideload/internal/db"
	"github.com/torfstack/sideload/internal/logging"
	"github.com/torfstack/sideload/internal/remote"
	"github.com/torfstack/sideload/internal/version"
)

// Run sweeps the upload directory until ctx is canceled. It returns nil on
// cancellation and an error only when the upload client cannot be recreated.
func (s *Service) Run(ctx context.Context) error {
	s.notifier.Send(ctx, fmt.Sprintf("%s: watching %s, version %s", version.AppName, s.cfg.UploadDir, version.Short()))

	for {
		logging.Infof("Sweeping %s, version %s", s.cfg.UploadDir, version.Short())
		if err := s.Sweep(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		logging.Infof("Sweep done, next one in %s", s.cfg.SleepAfterRound)
		if err := s.waitRound(ctx); err != nil {
			return nil
		}
	}
}

func (s *Service) waitRound(ctx context.Context) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.sleep(waitCtx, s.cfg.SleepAfterRound) }()

	select {
	case err := <-done:
		return err
	case <-s.wake:
		logging.Debug("New file noticed, starting next sweep early")
		cancel()
		<-done
		return ctx.Err()
	}
}

// Sweep runs one pass over the upload directory.
func (s *Service) Sweep(ctx context.Context) error {
	files, err := s.scanner.Files()
	if err != nil {
		logging.Error("Could not list upload directory", err)
		return ctx.Err()
	}
	s.prune(files)

	for _, path := range files {
		attempted, err := s.processFile(ctx, path)
		if err != nil {
			return err
		}
		if !attempted {
			continue
		}
		if err = s.sleep(ctx, s.cfg.SleepAfterFile); err != nil {
			return err
		}
	}
	return nil
}

// prune drops tracking for files that left the directory between sweeps.
func (s *Service) prune(files []string) {
	present := make(map[string]struct{}, len(files))
	for _, f := range files {
		present[f] = struct{}{}
	}
	for path := range s.attempts {
		if _, ok := present[path]; !ok {
			logging.Debugf("No longer present, forgetting %s", path)
			s.forget(path)
		}
	}
	for path := range s.hashes {
		if _, ok := present[path]; !ok {
			s.forget(path)
		}
	}
}

// processFile moves one file through the state machine. attempted reports
// whether the remote API was called.
func (s *Service) processFile(ctx context.Context, path string) (attempted bool, err error) {
	logging.Debugf("Checking size stability of %s", path)
	stable, err := s.stability.Stable(ctx, path)
	switch {
	case ctx.Err() != nil:
		return false, ctx.Err()
	case errors.Is(err, fs.ErrNotExist):
		logging.Infof("File vanished: %s", path)
		s.forget(path)
		return false, nil
	case err != nil:
		logging.Error("Could not check file stability", err)
		return false, nil
	case !stable:
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		logging.Infof("File vanished: %s", path)
		s.forget(path)
		return false, nil
	}
	size := info.Size()

	sha := s.hashes[path]
	if sha != "" {
		logging.Debugf("Using cached SHA-1 for %s: %s", path, sha)
	}

	s.attempts[path]++
	n := s.attempts[path]
	logging.Infof("Upload attempt %d/%d for %s (%s)", n, s.cfg.MaxAttempts, path, humanize.IBytes(uint64(size)))

	if n > s.cfg.MaxAttempts {
		s.quarantineFile(ctx, path, size, n)
		return false, nil
	}

	name := filepath.Base(path)
	res, err := s.client.InitUpload(ctx, remote.Request{
		Path:     path,
		Name:     name,
		Size:     size,
		SHA1:     sha,
		FolderID: s.cfg.FolderID,
	})
	if err != nil {
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		logging.Errorf("Upload of %s failed, recreating client: %s", path, err)
		client, errInit := s.factory(ctx)
		if errInit != nil {
			return true, fmt.Errorf("could not recreate upload client: %w", errInit)
		}
		s.client = client
		return true, nil
	}

	if res.OK() {
		s.uploaded(ctx, path, size, n, res)
		return true, nil
	}

	logging.Infof("Instant upload not possible yet for %s", path)
	if res.FileSHA1 != "" {
		s.hashes[path] = res.FileSHA1
		logging.Debugf("Cached SHA-1 for %s: %s", path, res.FileSHA1)
	}
	return true, nil
}

func (s *Service) uploaded(ctx context.Context, path string, size int64, attempts int, res remote.Result) {
	logging.Infof("Instant upload succeeded (%s): %s -> folder %s", res.Status, path, s.cfg.FolderID)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Error("Could not remove uploaded file", err)
	} else {
		logging.Infof("Removed local file %s", path)
	}
	s.forget(path)

	s.notifier.Send(ctx, fmt.Sprintf("%s: instant upload of \"%s\" succeeded", version.AppName, filepath.Base(path)))
	s.record(ctx, db.HistoryEntry{
		Path:     path,
		Size:     size,
		SHA1:     res.FileSHA1,
		Attempts: attempts,
		Outcome:  db.OutcomeUploaded,
		Detail:   res.RemoteID,
	})
}

func (s *Service) quarantineFile(ctx context.Context, path string, size int64, attempts int) {
	dst, err := s.quarantine.Move(path)
	if err != nil {
		logging.Error("Could not quarantine file", err)
		return
	}
	logging.Infof("Moved %s to %s after %d attempts", path, dst, s.cfg.MaxAttempts)
	sha := s.hashes[path]
	s.forget(path)

	s.notifier.Send(ctx, fmt.Sprintf(
		"%s: \"%s\" failed %d upload attempts, moved to %s",
		version.AppName, filepath.Base(path), s.cfg.MaxAttempts, s.cfg.QuarantineDir,
	))
	s.record(ctx, db.HistoryEntry{
		Path:     path,
		Size:     size,
		SHA1:     sha,
		Attempts: attempts - 1,
		Outcome:  db.OutcomeQuarantined,
		Detail:   dst,
	})
}

func (s *Service) record(ctx context.Context, e db.HistoryEntry) {
	if s.history == nil {
		return
	}
	e.RunID = s.runID
	e.CreatedAt = time.Now()
	if err := s.history.InsertHistory(context.WithoutCancel(ctx), e); err != nil {
		logging.Error("Could not record history", err)
	}
}
