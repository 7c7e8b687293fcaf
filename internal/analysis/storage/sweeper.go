package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/veridoc/veridoc-backend/pkg/logger"
)

// Sweeper removes uploaded files and generated artifacts once they age past
// the retention window. It has its own lifecycle: started at process init,
// cancelled at shutdown, never coupled to request handling. It acts only on
// file age, so it cannot race an in-flight analysis whose files are always
// newer than the cutoff.
type Sweeper struct {
	dir       string
	retention time.Duration
	interval  time.Duration
	log       *logger.Logger
	done      chan struct{}
}

// NewSweeper creates a sweeper over dir
func NewSweeper(dir string, retention, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		dir:       dir,
		retention: retention,
		interval:  interval,
		log:       log.WithComponent("sweeper"),
		done:      make(chan struct{}),
	}
}

// Start runs the sweep loop until ctx is cancelled
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.log.Info().
			Str("dir", s.dir).
			Dur("retention", s.retention).
			Msg("artifact sweeper started")

		for {
			select {
			case <-ctx.Done():
				s.log.Info().Msg("artifact sweeper stopped")
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

// Wait blocks until the sweep loop has exited
func (s *Sweeper) Wait() {
	<-s.done
}

func (s *Sweeper) sweep() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Msg("failed to read artifact directory")
		}
		return
	}

	cutoff := time.Now().Add(-s.retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.log.Warn().Err(err).Str("file", entry.Name()).Msg("failed to remove expired file")
			continue
		}
		removed++
	}

	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("expired artifacts swept")
	}
}
