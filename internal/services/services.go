package services

import (
	"database/sql"

	"go.uber.org/zap"
)

// Services bundles every service of the application, built once at process start
type Services struct {
	Fields            *FieldService
	GroupfolderFields *GroupfolderFieldService
	Groupfolders      *GroupfolderService
	Assignments       *AssignmentService
	Metadata          *MetadataService
	Events            *EventService
	Search            *SearchService
	Usage             *UsageService
	Auth              *AuthService
}

// Options configure New
type Options struct {
	DeletePolicy  DeletePolicy
	AuthSecret    string
	SessionMaxAge int
}

// New wires all services against db. schemaCache may be nil to disable caching.
func New(db *sql.DB, schemaCache *SchemaCache, logger *zap.Logger, opts Options) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Services{
		Fields:            NewFieldService(db, schemaCache, opts.DeletePolicy),
		GroupfolderFields: NewGroupfolderFieldService(db, schemaCache, opts.DeletePolicy),
		Groupfolders:      NewGroupfolderService(db, schemaCache),
		Assignments:       NewAssignmentService(db, schemaCache),
		Metadata:          NewMetadataService(db),
		Events:            NewEventService(db, logger.Named("events")),
		Search:            NewSearchService(db),
		Usage:             NewUsageService(db),
		Auth:              NewAuthService(opts.AuthSecret, opts.SessionMaxAge),
	}
}
