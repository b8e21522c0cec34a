package job

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-sync/internal/platform"
	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile"
	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile/dto"
	"github.com/fekuna/omnipos-inventory-sync/pkg/logger"
	"go.uber.org/zap"
)

// Target is one connected store polled on a schedule.
type Target struct {
	TenantID string
	Adapter  platform.Adapter
}

type Config struct {
	Interval         time.Duration
	Timeout          time.Duration
	EnableEnrichment bool
}

// PollJob pulls each target's full catalog and reconciles it. A run that
// exceeds Timeout is cancelled; items the engine had not started yet are
// reported as failed.
type PollJob struct {
	targets []Target
	uc      reconcile.UseCase
	cfg     Config
	logger  logger.ZapLogger
}

func NewPollJob(uc reconcile.UseCase, targets []Target, cfg Config, log logger.ZapLogger) *PollJob {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &PollJob{
		targets: targets,
		uc:      uc,
		cfg:     cfg,
		logger:  log.With(zap.String("component", "poll_job")),
	}
}

// Start runs once immediately and then on every tick until ctx is done.
func (j *PollJob) Start(ctx context.Context) {
	j.logger.Info("Starting poll sync job",
		zap.Duration("interval", j.cfg.Interval),
		zap.Int("targets", len(j.targets)),
	)
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	j.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Stopping poll sync job")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

func (j *PollJob) RunOnce(ctx context.Context) []*dto.SyncBatchResult {
	results := make([]*dto.SyncBatchResult, 0, len(j.targets))
	for _, t := range j.targets {
		if ctx.Err() != nil {
			break
		}
		res, err := j.syncTarget(ctx, t)
		if err != nil {
			j.logger.Error("Poll sync failed",
				zap.String("tenant_id", t.TenantID),
				zap.String("platform", t.Adapter.Platform()),
				zap.Error(err),
			)
			continue
		}
		results = append(results, res)
	}
	return results
}

func (j *PollJob) syncTarget(ctx context.Context, t Target) (*dto.SyncBatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
	defer cancel()

	items, err := t.Adapter.FetchItems(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		j.logger.Debug("Nothing to sync",
			zap.String("tenant_id", t.TenantID),
			zap.String("platform", t.Adapter.Platform()),
		)
		return &dto.SyncBatchResult{}, nil
	}

	return j.uc.Reconcile(ctx, &dto.ReconcileInput{
		TenantID: t.TenantID,
		Source:   t.Adapter.Platform(),
		Items:    items,
		Options: dto.Options{
			EnableEnrichment: j.cfg.EnableEnrichment,
			Platform:         t.Adapter.Platform(),
		},
	})
}
