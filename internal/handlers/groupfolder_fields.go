package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"groupfolderMetadata/internal/models"
	"groupfolderMetadata/internal/utils"
)

// groupfolderFieldRequest is a field definition addressed to one groupfolder
type groupfolderFieldRequest struct {
	GroupfolderID int64 `json:"groupfolder_id"`
	models.FieldDefinition
}

// ListGroupfolderFields handles GET /api/groupfolder-fields?groupfolder_id=
func (h *Handlers) ListGroupfolderFields(w http.ResponseWriter, r *http.Request) {
	gid, ok := queryInt64(w, r, "groupfolder_id")
	if !ok {
		return
	}

	fields, err := h.svc.GroupfolderFields.ListGroupfolderFields(r.Context(), gid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, fields)
}

// GetGroupfolderField handles GET /api/groupfolder-fields/{id}?groupfolder_id=
func (h *Handlers) GetGroupfolderField(w http.ResponseWriter, r *http.Request) {
	gid, ok := queryInt64(w, r, "groupfolder_id")
	if !ok {
		return
	}

	field, err := h.svc.GroupfolderFields.GetGroupfolderField(r.Context(), gid, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, field)
}

// CreateGroupfolderField handles POST /api/groupfolder-fields
func (h *Handlers) CreateGroupfolderField(w http.ResponseWriter, r *http.Request) {
	var req groupfolderFieldRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.GroupfolderID <= 0 {
		utils.BadRequestError(w, "groupfolder_id is required")
		return
	}

	field, err := h.svc.GroupfolderFields.CreateGroupfolderField(r.Context(), req.GroupfolderID, req.FieldDefinition)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, field)
}

// UpdateGroupfolderField handles PUT /api/groupfolder-fields/{id}
func (h *Handlers) UpdateGroupfolderField(w http.ResponseWriter, r *http.Request) {
	var req groupfolderFieldRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.GroupfolderID <= 0 {
		utils.BadRequestError(w, "groupfolder_id is required")
		return
	}

	field, err := h.svc.GroupfolderFields.UpdateGroupfolderField(r.Context(), req.GroupfolderID, mux.Vars(r)["id"], req.FieldDefinition)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, field)
}

// DeleteGroupfolderField handles DELETE /api/groupfolder-fields/{id}?groupfolder_id=
func (h *Handlers) DeleteGroupfolderField(w http.ResponseWriter, r *http.Request) {
	gid, ok := queryInt64(w, r, "groupfolder_id")
	if !ok {
		return
	}

	if err := h.svc.GroupfolderFields.DeleteGroupfolderField(r.Context(), gid, mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithSuccess(w, nil, "Field deleted successfully")
}
