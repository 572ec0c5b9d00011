package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"groupfolderMetadata/internal/host"
	"groupfolderMetadata/internal/models"
	"groupfolderMetadata/internal/services"
)

// Job names, as accepted by the run-job command
const (
	SearchIndexJobName     = "search-index"
	CleanupJobName         = "cleanup-deleted"
	LicenseUsageJobName    = "license-usage"
	GroupfolderSyncJobName = "groupfolder-sync"
)

// SearchIndexJob rebuilds the metadata search index
type SearchIndexJob struct {
	Search *services.SearchService
	Logger *zap.Logger
}

func (j *SearchIndexJob) Name() string { return SearchIndexJobName }

func (j *SearchIndexJob) Run(ctx context.Context) error {
	n, err := j.Search.RebuildIndex(ctx)
	if err != nil {
		return err
	}
	logger(j.Logger).Info("search index rebuilt", zap.Int("values", n))
	return nil
}

// CleanupJob purges the metadata of files deleted longer than Retention ago
type CleanupJob struct {
	Events    *services.EventService
	Retention time.Duration
	Logger    *zap.Logger
	// Now is the clock; nil means time.Now
	Now func() time.Time
}

func (j *CleanupJob) Name() string { return CleanupJobName }

func (j *CleanupJob) Run(ctx context.Context) error {
	clock := j.Now
	if clock == nil {
		clock = time.Now
	}
	n, err := j.Events.PurgeDeleted(ctx, clock().Add(-j.Retention))
	if err != nil {
		return err
	}
	if n > 0 {
		logger(j.Logger).Info("purged metadata of deleted files", zap.Int("files", n))
	}
	return nil
}

// UsageSink receives every computed usage report
type UsageSink interface {
	Publish(ctx context.Context, report *models.UsageReport) error
}

// LicenseUsageJob computes, stores and publishes a usage report
type LicenseUsageJob struct {
	Usage  *services.UsageService
	Sinks  []UsageSink
	Logger *zap.Logger
}

func (j *LicenseUsageJob) Name() string { return LicenseUsageJobName }

func (j *LicenseUsageJob) Run(ctx context.Context) error {
	report, err := j.Usage.ComputeUsage(ctx)
	if err != nil {
		return err
	}
	if err := j.Usage.SaveUsageReport(ctx, report); err != nil {
		return err
	}
	// A failing sink does not invalidate the stored report
	for _, sink := range j.Sinks {
		if err := sink.Publish(ctx, report); err != nil {
			logger(j.Logger).Warn("failed to publish usage report", zap.Int64("report_id", report.ID), zap.Error(err))
		}
	}
	return nil
}

// GroupfolderLister lists the groupfolders known to the host
type GroupfolderLister interface {
	ListGroupfolders(ctx context.Context) ([]host.Groupfolder, error)
}

// GroupfolderSyncJob registers every groupfolder the host knows about
type GroupfolderSyncJob struct {
	Host         GroupfolderLister
	Groupfolders *services.GroupfolderService
	Logger       *zap.Logger
}

func (j *GroupfolderSyncJob) Name() string { return GroupfolderSyncJobName }

func (j *GroupfolderSyncJob) Run(ctx context.Context) error {
	folders, err := j.Host.ListGroupfolders(ctx)
	if err != nil {
		return err
	}
	for _, f := range folders {
		if _, err := j.Groupfolders.UpsertGroupfolder(ctx, f.ID, f.MountPoint); err != nil {
			return err
		}
	}
	logger(j.Logger).Info("groupfolders synchronized", zap.Int("groupfolders", len(folders)))
	return nil
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
