package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"groupfolderMetadata/internal/models"
)

// LogSink writes usage reports to the application log
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Publish(ctx context.Context, report *models.UsageReport) error {
	logger(s.Logger).Info("license usage",
		zap.Int64("report_id", report.ID),
		zap.Int("global_fields", report.GlobalFields),
		zap.Int("groupfolder_fields", report.GroupfolderFields),
		zap.Int("groupfolders", report.Groupfolders),
		zap.Int("files_with_metadata", report.FilesWithMetadata),
		zap.Int("total_values", report.TotalValues))
	return nil
}

// SheetsSink appends every usage report as a row to a Google Sheet
type SheetsSink struct {
	srv           *sheets.Service
	spreadsheetID string
	sheetRange    string
}

// NewSheetsSink creates a sink for spreadsheetID. opts usually carry the service account credentials.
func NewSheetsSink(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*SheetsSink, error) {
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Sheets client: %w", err)
	}
	return &SheetsSink{srv: srv, spreadsheetID: spreadsheetID, sheetRange: "A:G"}, nil
}

func (s *SheetsSink) Publish(ctx context.Context, report *models.UsageReport) error {
	row := []interface{}{
		report.GeneratedAt.UTC().Format(time.RFC3339),
		report.ID,
		report.GlobalFields,
		report.GroupfolderFields,
		report.Groupfolders,
		report.FilesWithMetadata,
		report.TotalValues,
	}

	_, err := s.srv.Spreadsheets.Values.Append(s.spreadsheetID, s.sheetRange, &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to append usage row: %w", err)
	}
	return nil
}
