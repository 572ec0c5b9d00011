package services

import (
	"context"
	"database/sql"

	"groupfolderMetadata/internal/models"
)

// UsageService computes and records license usage reports
type UsageService struct {
	db *sql.DB
}

// NewUsageService creates a new usage reporter
func NewUsageService(db *sql.DB) *UsageService {
	return &UsageService{db: db}
}

// ComputeUsage counts fields, groupfolders and stored values
func (s *UsageService) ComputeUsage(ctx context.Context) (*models.UsageReport, error) {
	report := &models.UsageReport{GeneratedAt: now()}

	counts := []struct {
		dest  *int
		query string
	}{
		{&report.GlobalFields, `SELECT COUNT(*) FROM metadata_fields WHERE scope = 'global'`},
		{&report.GroupfolderFields, `SELECT COUNT(*) FROM metadata_fields WHERE scope = 'groupfolder'`},
		{&report.Groupfolders, `SELECT COUNT(*) FROM groupfolders`},
		{&report.FilesWithMetadata, `SELECT COUNT(*) FROM (
			SELECT file_id FROM file_metadata UNION SELECT file_id FROM groupfolder_file_metadata
		)`},
		{&report.TotalValues, `SELECT
			(SELECT COUNT(*) FROM file_metadata) +
			(SELECT COUNT(*) FROM groupfolder_file_metadata) +
			(SELECT COUNT(*) FROM groupfolder_metadata)`},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, WrapDatabaseError(ErrTypeQuery, "failed to compute usage", err)
		}
	}
	return report, nil
}

// SaveUsageReport stores report and sets its id
func (s *UsageService) SaveUsageReport(ctx context.Context, report *models.UsageReport) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO license_usage_reports
			(global_fields, groupfolder_fields, groupfolders, files_with_metadata, total_values, generated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, report.GlobalFields, report.GroupfolderFields, report.Groupfolders, report.FilesWithMetadata,
		report.TotalValues, report.GeneratedAt)
	if err != nil {
		return WrapDatabaseError(ErrTypeQuery, "failed to save usage report", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return WrapDatabaseError(ErrTypeQuery, "failed to read usage report id", err)
	}
	report.ID = id
	return nil
}

// LatestUsageReport returns the most recent stored report
func (s *UsageService) LatestUsageReport(ctx context.Context) (*models.UsageReport, error) {
	var r models.UsageReport
	err := s.db.QueryRowContext(ctx, `
		SELECT id, global_fields, groupfolder_fields, groupfolders, files_with_metadata, total_values, generated_at
		FROM license_usage_reports ORDER BY id DESC LIMIT 1
	`).Scan(&r.ID, &r.GlobalFields, &r.GroupfolderFields, &r.Groupfolders, &r.FilesWithMetadata, &r.TotalValues, &r.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, NotFound("usage report", "latest")
	}
	if err != nil {
		return nil, WrapDatabaseError(ErrTypeQuery, "failed to query usage report", err)
	}
	return &r, nil
}
