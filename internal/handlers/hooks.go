package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"groupfolderMetadata/internal/models"
	"groupfolderMetadata/internal/utils"
)

type eventHandler func(ctx context.Context, ev models.FileEvent) error

func (h *Handlers) handleEvent(name string, fn eventHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev models.FileEvent
		if !decodeJSON(w, r, &ev) {
			return
		}
		if err := fn(r.Context(), ev); err != nil {
			h.fail(w, r, err)
			return
		}
		h.logger.Debug("file event handled", zap.String("event", name), zap.Int64("file_id", ev.FileID))
		utils.RespondWithSuccess(w, nil, "Event processed")
	}
}

// FileCopied handles POST /api/hooks/file-copied
func (h *Handlers) FileCopied(w http.ResponseWriter, r *http.Request) {
	h.handleEvent("file-copied", h.svc.Events.OnFileCopied)(w, r)
}

// FileCreated handles POST /api/hooks/file-created
func (h *Handlers) FileCreated(w http.ResponseWriter, r *http.Request) {
	h.handleEvent("file-created", h.svc.Events.OnFileCreated)(w, r)
}

// FileDeleted handles POST /api/hooks/file-deleted
func (h *Handlers) FileDeleted(w http.ResponseWriter, r *http.Request) {
	h.handleEvent("file-deleted", h.svc.Events.OnFileDeleted)(w, r)
}

// FileRestored handles POST /api/hooks/file-restored
func (h *Handlers) FileRestored(w http.ResponseWriter, r *http.Request) {
	h.handleEvent("file-restored", h.svc.Events.OnFileRestored)(w, r)
}
