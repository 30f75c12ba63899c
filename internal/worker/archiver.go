package worker

import (
	"context"
	"time"

	"github.com/wb-go/wbf/zlog"
)

//go:generate mockgen -source=archiver.go -destination=../mocks/worker/archiver_mock.go -package=mocks
type archiveRepository interface {
	ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Archiver periodically marks notifications older than the retention window
// as archived. The flag is informational only and never affects dispatch.
type Archiver struct {
	repo      archiveRepository
	retention time.Duration
	interval  time.Duration
}

func NewArchiver(repo archiveRepository, retentionDays int, interval time.Duration) *Archiver {
	return &Archiver{
		repo:      repo,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  interval,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (a *Archiver) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Print("archiver stopped")
			return
		case <-ticker.C:
			a.Sweep(ctx)
		}
	}
}

// Sweep archives everything older than the retention cutoff once.
func (a *Archiver) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-a.retention)

	archived, err := a.repo.ArchiveOlderThan(ctx, cutoff)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to archive old notifications")
		return
	}

	if archived > 0 {
		zlog.Logger.Info().Int64("archived", archived).Time("cutoff", cutoff).Msg("archived old notifications")
	}
}
