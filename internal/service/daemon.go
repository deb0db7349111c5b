package service

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/torfstack/sideload/internal/local"
	"github.com/torfstack/sideload/internal/logging"
	"golang.org/x/sync/errgroup"
)

// RunDaemon runs the polling loop and, when watching is enabled, a file
// system watcher that wakes the loop early on new files. The watcher never
// processes files itself.
func (s *Service) RunDaemon(ctx context.Context) error {
	if !s.cfg.Watch {
		return s.Run(ctx)
	}

	watcher, err := local.NewWatcher(s.cfg.UploadDir)
	if err != nil {
		logging.Errorf("Could not watch %s, falling back to polling only: %s", s.cfg.UploadDir, err)
		return s.Run(ctx)
	}
	defer watcher.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watcher.Run(gctx)
	})
	g.Go(func() error {
		for event := range watcher.Events {
			if event.Op.Has(fsnotify.Create) {
				logging.Debugf("Noticed %s (%s)", event.Path, event.Op)
				s.Wake()
			}
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return s.Run(gctx)
	})
	return g.Wait()
}
