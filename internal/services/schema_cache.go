package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"groupfolderMetadata/internal/cache"
	"groupfolderMetadata/internal/models"
)

// SchemaCache caches the resolved field list of each groupfolder.
// Cache failures are logged and treated as misses; the database stays authoritative.
type SchemaCache struct {
	backend cache.Cache
	ttl     time.Duration
	logger  *zap.Logger
}

// NewSchemaCache wraps backend. A nil backend disables caching.
func NewSchemaCache(backend cache.Cache, ttl time.Duration, logger *zap.Logger) *SchemaCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaCache{backend: backend, ttl: ttl, logger: logger}
}

func assignedKey(gid int64) string {
	return "assigned:" + strconv.FormatInt(gid, 10)
}

// schemaEntry is a resolved schema tagged with the schema version it was resolved at
type schemaEntry struct {
	Version int64          `json:"version"`
	Fields  []models.Field `json:"fields"`
}

// get returns the cached schema of gid when it was resolved at version
func (c *SchemaCache) get(ctx context.Context, gid, version int64) ([]models.Field, bool) {
	if c == nil || c.backend == nil {
		return nil, false
	}
	raw, err := c.backend.Get(ctx, assignedKey(gid))
	if err != nil {
		if !cache.IsCacheMiss(err) {
			c.logger.Warn("schema cache read failed", zap.Int64("groupfolder_id", gid), zap.Error(err))
		}
		return nil, false
	}
	var entry schemaEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("discarding corrupt schema cache entry", zap.Int64("groupfolder_id", gid), zap.Error(err))
		return nil, false
	}
	if entry.Version != version {
		return nil, false
	}
	return entry.Fields, true
}

func (c *SchemaCache) set(ctx context.Context, gid, version int64, fields []models.Field) {
	if c == nil || c.backend == nil {
		return
	}
	raw, err := json.Marshal(schemaEntry{Version: version, Fields: fields})
	if err != nil {
		return
	}
	if err := c.backend.Set(ctx, assignedKey(gid), raw, c.ttl); err != nil {
		c.logger.Warn("schema cache write failed", zap.Int64("groupfolder_id", gid), zap.Error(err))
	}
}

// Invalidate drops the cached schema of one groupfolder
func (c *SchemaCache) Invalidate(ctx context.Context, gid int64) {
	if c == nil || c.backend == nil {
		return
	}
	if err := c.backend.Delete(ctx, assignedKey(gid)); err != nil {
		c.logger.Warn("schema cache invalidation failed", zap.Int64("groupfolder_id", gid), zap.Error(err))
	}
}

// InvalidateAll drops every cached schema, used when a global field changes
func (c *SchemaCache) InvalidateAll(ctx context.Context) {
	if c == nil || c.backend == nil {
		return
	}
	if err := c.backend.Clear(ctx); err != nil {
		c.logger.Warn("schema cache clear failed", zap.Error(err))
	}
}
