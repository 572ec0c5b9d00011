package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"groupfolderMetadata/internal/models"
	"groupfolderMetadata/internal/utils"
)

// ListFields handles GET /api/fields
func (h *Handlers) ListFields(w http.ResponseWriter, r *http.Request) {
	fields, err := h.svc.Fields.ListFields(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, fields)
}

// CreateField handles POST /api/fields
func (h *Handlers) CreateField(w http.ResponseWriter, r *http.Request) {
	var def models.FieldDefinition
	if !decodeJSON(w, r, &def) {
		return
	}

	field, err := h.svc.Fields.CreateField(r.Context(), def)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, field)
}

// GetField handles GET /api/fields/{id}
func (h *Handlers) GetField(w http.ResponseWriter, r *http.Request) {
	field, err := h.svc.Fields.GetField(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, field)
}

// UpdateField handles PUT /api/fields/{id}
func (h *Handlers) UpdateField(w http.ResponseWriter, r *http.Request) {
	var def models.FieldDefinition
	if !decodeJSON(w, r, &def) {
		return
	}

	field, err := h.svc.Fields.UpdateField(r.Context(), mux.Vars(r)["id"], def)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, field)
}

// DeleteField handles DELETE /api/fields/{id}
func (h *Handlers) DeleteField(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Fields.DeleteField(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithSuccess(w, nil, "Field deleted successfully")
}
