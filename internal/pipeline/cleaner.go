package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultTempFileTTL             = time.Hour
	DefaultTempFileCleanupInterval = 30 * time.Minute
)

// Cleaner removes stale files from the upload directory. The pipeline deletes
// its own temp file after every invocation; the cleaner only catches leftovers
// from crashes or failed deletes.
type Cleaner struct {
	dir string
	ttl time.Duration
}

func NewCleaner(dir string, ttl time.Duration) *Cleaner {
	if ttl <= 0 {
		ttl = DefaultTempFileTTL
	}
	return &Cleaner{dir: dir, ttl: ttl}
}

// Start launches the periodic sweep until ctx is cancelled.
func (c *Cleaner) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTempFileCleanupInterval
	}
	go c.loop(ctx, interval)
}

func (c *Cleaner) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sweep(); err != nil {
				log.Error().Err(err).Str("dir", c.dir).Msg("upload dir sweep failed")
			}
		}
	}
}

// Sweep removes regular files older than the TTL. Best effort: individual
// remove failures are logged and skipped.
func (c *Cleaner) Sweep() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	cutoff := time.Now().Add(-c.ttl)
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
		path := filepath.Join(c.dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("remove stale upload failed")
			continue
		}
		log.Debug().Str("path", path).Msg("removed stale upload")
	}
	return nil
}
