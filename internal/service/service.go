package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/torfstack/sideload/internal/config"
	"github.com/torfstack/sideload/internal/db"
	"github.com/torfstack/sideload/internal/local"
	"github.com/torfstack/sideload/internal/notify"
	"github.com/torfstack/sideload/internal/remote"
	"github.com/torfstack/sideload/internal/util"
)

// HistoryRecorder stores terminal outcomes. It is write only from the
// service's point of view.
type HistoryRecorder interface {
	InsertHistory(ctx context.Context, e db.HistoryEntry) error
}

type Options struct {
	Config   config.Config
	Factory  remote.Factory
	Notifier notify.Notifier
	History  HistoryRecorder

	// Sleep replaces util.Sleep for every wait the service performs.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Service owns the polling loop. All of its state is in memory and only
// touched from the goroutine calling Run or Sweep.
type Service struct {
	cfg        config.Config
	factory    remote.Factory
	client     remote.Client
	notifier   notify.Notifier
	history    HistoryRecorder
	scanner    *local.Scanner
	stability  local.StabilityChecker
	quarantine local.Quarantine
	sleep      func(ctx context.Context, d time.Duration) error
	runID      string

	hashes   map[string]string
	attempts map[string]int

	wake chan struct{}
}

// New creates the remote client and the quarantine directory. Errors here
// are fatal for the process.
func New(ctx context.Context, opts Options) (*Service, error) {
	sleep := opts.Sleep
	if sleep == nil {
		sleep = util.Sleep
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}

	s := &Service{
		cfg:      opts.Config,
		factory:  opts.Factory,
		notifier: notifier,
		history:  opts.History,
		scanner:  local.NewScanner(opts.Config.UploadDir, opts.Config.Ignore),
		stability: local.StabilityChecker{
			Interval:  opts.Config.StabilityInterval,
			MaxProbes: opts.Config.StabilityProbes,
			Sleep:     sleep,
		},
		quarantine: local.Quarantine{Dir: opts.Config.QuarantineDir},
		sleep:      sleep,
		runID:      uuid.NewString(),
		hashes:     make(map[string]string),
		attempts:   make(map[string]int),
		wake:       make(chan struct{}, 1),
	}

	if err := s.quarantine.Ensure(); err != nil {
		return nil, err
	}

	client, err := s.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not initialize upload client: %w", err)
	}
	s.client = client
	return s, nil
}

// Wake cuts the current pause between sweeps short. It never blocks.
func (s *Service) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) forget(path string) {
	delete(s.hashes, path)
	delete(s.attempts, path)
}
