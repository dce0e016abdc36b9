package locking

import (
	"context"
	"log/slog"
	"time"

	"mintix/pkg/logger"
)

// SweeperConfig contains configuration for the background lock sweeper.
type SweeperConfig struct {
	Interval time.Duration
}

func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval: 30 * time.Second,
	}
}

// Sweeper periodically reclaims abandoned seat locks. It is the second line
// of defense behind the mint pipeline's guaranteed release path.
type Sweeper struct {
	coordinator *Coordinator
	config      SweeperConfig
	done        chan struct{}
	logger      *logger.Logger
}

func NewSweeper(coordinator *Coordinator, config SweeperConfig) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultSweeperConfig().Interval
	}
	return &Sweeper{
		coordinator: coordinator,
		config:      config,
		done:        make(chan struct{}),
		logger:      logger.GetDefault(),
	}
}

// Start runs the sweep loop until Stop is called or ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go s.run(ctx)
	s.logger.Info("seat lock sweeper started", slog.Duration("interval", s.config.Interval))
}

// Stop terminates the sweep loop.
func (s *Sweeper) Stop() {
	close(s.done)
	s.logger.Info("seat lock sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	count, err := s.coordinator.CleanupExpired(ctx)
	if err != nil {
		s.logger.Error("seat lock sweep failed", slog.Any("error", err))
		return
	}
	if count > 0 {
		s.logger.Debug("seat lock sweep completed", slog.Int("reclaimed", count))
	}
}
