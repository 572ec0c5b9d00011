package handlers

import (
	"net/http"

	"groupfolderMetadata/internal/models"
	"groupfolderMetadata/internal/services"
	"groupfolderMetadata/internal/utils"
)

// ListGroupfolders handles GET /api/groupfolders
func (h *Handlers) ListGroupfolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.svc.Groupfolders.ListGroupfolders(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, folders)
}

// RegisterGroupfolder handles POST /api/groupfolders
func (h *Handlers) RegisterGroupfolder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID         int64  `json:"id"`
		MountPoint string `json:"mount_point"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID <= 0 {
		utils.BadRequestError(w, "id must be a positive integer")
		return
	}

	folder, err := h.svc.Groupfolders.UpsertGroupfolder(r.Context(), req.ID, req.MountPoint)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, folder)
}

// DeleteGroupfolder handles DELETE /api/groupfolders/{groupfolderId}
func (h *Handlers) DeleteGroupfolder(w http.ResponseWriter, r *http.Request) {
	gid, ok := pathInt64(w, r, "groupfolderId")
	if !ok {
		return
	}

	if err := h.svc.Groupfolders.DeleteGroupfolder(r.Context(), gid); err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithSuccess(w, nil, "Groupfolder deleted successfully")
}

// GetAssignedFields handles GET /api/groupfolders/{groupfolderId}/fields
func (h *Handlers) GetAssignedFields(w http.ResponseWriter, r *http.Request) {
	gid, ok := pathInt64(w, r, "groupfolderId")
	if !ok {
		return
	}

	fields, version, err := h.svc.Assignments.GetAssignedSchema(r.Context(), gid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	setSchemaVersion(w, version)
	utils.RespondWithJSON(w, http.StatusOK, fields)
}

// SetAssignedFields handles POST /api/groupfolders/{groupfolderId}/fields
func (h *Handlers) SetAssignedFields(w http.ResponseWriter, r *http.Request) {
	gid, ok := pathInt64(w, r, "groupfolderId")
	if !ok {
		return
	}
	var req struct {
		FieldIDs        *[]string `json:"field_ids"`
		ExpectedVersion *int64    `json:"expected_version"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	// an explicit [] clears the set; a missing list must not
	if req.FieldIDs == nil {
		h.fail(w, r, services.ValidationFailed("invalid field assignment", map[string]string{"field_ids": "is required"}))
		return
	}

	version, err := h.svc.Assignments.SetAssignedFields(r.Context(), gid, *req.FieldIDs, req.ExpectedVersion)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	fields, err := h.svc.Assignments.GetAssignedFields(r.Context(), gid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	setSchemaVersion(w, version)
	utils.RespondWithJSON(w, http.StatusOK, fields)
}

// GetFieldOverrides handles GET /api/groupfolders/{groupfolderId}/field-overrides
func (h *Handlers) GetFieldOverrides(w http.ResponseWriter, r *http.Request) {
	gid, ok := pathInt64(w, r, "groupfolderId")
	if !ok {
		return
	}

	overrides, err := h.svc.Assignments.GetFieldOverrides(r.Context(), gid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, overrides)
}

// SaveFieldOverride handles POST /api/groupfolders/{groupfolderId}/field-overrides
func (h *Handlers) SaveFieldOverride(w http.ResponseWriter, r *http.Request) {
	gid, ok := pathInt64(w, r, "groupfolderId")
	if !ok {
		return
	}
	var req struct {
		FieldID         string `json:"field_id"`
		ExpectedVersion *int64 `json:"expected_version"`
		models.OverridePatch
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FieldID == "" {
		utils.BadRequestError(w, "field_id is required")
		return
	}

	override, version, err := h.svc.Assignments.SaveFieldOverride(r.Context(), gid, req.FieldID, req.OverridePatch, req.ExpectedVersion)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	setSchemaVersion(w, version)
	utils.RespondWithJSON(w, http.StatusOK, override)
}

// DeleteFieldOverride handles DELETE /api/groupfolders/{groupfolderId}/field-overrides/{fieldId}
func (h *Handlers) DeleteFieldOverride(w http.ResponseWriter, r *http.Request) {
	gid, ok := pathInt64(w, r, "groupfolderId")
	if !ok {
		return
	}
	expected, ok := expectedVersion(w, r)
	if !ok {
		return
	}

	version, err := h.svc.Assignments.DeleteFieldOverride(r.Context(), gid, muxVar(r, "fieldId"), expected)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	setSchemaVersion(w, version)
	utils.RespondWithSuccess(w, nil, "Override deleted successfully")
}
