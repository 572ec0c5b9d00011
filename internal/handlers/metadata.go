package handlers

import (
	"net/http"

	"groupfolderMetadata/internal/models"
	"groupfolderMetadata/internal/utils"
)

// Metric targets of metadata writes
const (
	targetFile            = "file"
	targetGroupfolderFile = "groupfolder_file"
	targetGroupfolder     = "groupfolder"
)

// GetFileMetadata handles GET /api/files/{fileId}/metadata
func (h *Handlers) GetFileMetadata(w http.ResponseWriter, r *http.Request) {
	fileID, ok := pathInt64(w, r, "fileId")
	if !ok {
		return
	}

	values, err := h.svc.Metadata.GetFileMetadata(r.Context(), fileID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, values)
}

// SaveFileMetadata handles POST /api/files/{fileId}/metadata
func (h *Handlers) SaveFileMetadata(w http.ResponseWriter, r *http.Request) {
	fileID, ok := pathInt64(w, r, "fileId")
	if !ok {
		return
	}
	values, ok := decodeValues(w, r)
	if !ok {
		return
	}

	saved, err := h.svc.Metadata.SaveFileMetadata(r.Context(), fileID, values)
	h.metrics.RecordWrite(targetFile, err, isValidation(err))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, saved)
}

// GetGroupfolderFileMetadata handles GET /api/groupfolders/{groupfolderId}/files/{fileId}/metadata
func (h *Handlers) GetGroupfolderFileMetadata(w http.ResponseWriter, r *http.Request) {
	gid, ok := pathInt64(w, r, "groupfolderId")
	if !ok {
		return
	}
	fileID, ok := pathInt64(w, r, "fileId")
	if !ok {
		return
	}

	values, err := h.svc.Metadata.GetGroupfolderFileMetadata(r.Context(), gid, fileID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, values)
}

// SaveGroupfolderFileMetadata handles POST /api/groupfolders/{groupfolderId}/files/{fileId}/metadata
func (h *Handlers) SaveGroupfolderFileMetadata(w http.ResponseWriter, r *http.Request) {
	gid, ok := pathInt64(w, r, "groupfolderId")
	if !ok {
		return
	}
	fileID, ok := pathInt64(w, r, "fileId")
	if !ok {
		return
	}
	values, ok := decodeValues(w, r)
	if !ok {
		return
	}

	saved, err := h.svc.Metadata.SaveGroupfolderFileMetadata(r.Context(), gid, fileID, values)
	h.metrics.RecordWrite(targetGroupfolderFile, err, isValidation(err))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, saved)
}

// GetGroupfolderMetadata handles GET /api/groupfolders/{groupfolderId}/metadata
func (h *Handlers) GetGroupfolderMetadata(w http.ResponseWriter, r *http.Request) {
	gid, ok := pathInt64(w, r, "groupfolderId")
	if !ok {
		return
	}

	values, err := h.svc.Metadata.GetGroupfolderMetadata(r.Context(), gid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, values)
}

// SaveGroupfolderMetadata handles POST /api/groupfolders/{groupfolderId}/metadata
func (h *Handlers) SaveGroupfolderMetadata(w http.ResponseWriter, r *http.Request) {
	gid, ok := pathInt64(w, r, "groupfolderId")
	if !ok {
		return
	}
	values, ok := decodeValues(w, r)
	if !ok {
		return
	}

	saved, err := h.svc.Metadata.SaveGroupfolderMetadata(r.Context(), gid, values)
	h.metrics.RecordWrite(targetGroupfolder, err, isValidation(err))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, saved)
}

// decodeValues accepts either a bare {fieldId: value} object or one wrapped as {"values": {...}}
func decodeValues(w http.ResponseWriter, r *http.Request) (models.Values, bool) {
	var body models.Values
	if !decodeJSON(w, r, &body) {
		return nil, false
	}
	if wrapped, ok := body["values"].(map[string]interface{}); ok && len(body) == 1 {
		return models.Values(wrapped), true
	}
	if body == nil {
		body = models.Values{}
	}
	return body, true
}
