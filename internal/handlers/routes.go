package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Access is the level of authentication a route requires
type Access int

const (
	// AccessUser needs any authenticated host user
	AccessUser Access = iota
	// AccessAdmin needs a host administrator; used for schema writes
	AccessAdmin
	// AccessHook needs a host-issued token; used by the host's event dispatcher
	AccessHook
)

// Guard wraps a handler with the checks for access
type Guard func(access Access, next http.HandlerFunc) http.HandlerFunc

// Register mounts every API route on r
func (h *Handlers) Register(r *mux.Router, guard Guard) {
	if guard == nil {
		guard = func(_ Access, next http.HandlerFunc) http.HandlerFunc { return next }
	}
	route := func(method, path string, access Access, fn http.HandlerFunc) {
		r.HandleFunc(path, guard(access, fn)).Methods(method)
	}

	route("GET", "/api/fields", AccessUser, h.ListFields)
	route("POST", "/api/fields", AccessAdmin, h.CreateField)
	route("GET", "/api/fields/{id}", AccessUser, h.GetField)
	route("PUT", "/api/fields/{id}", AccessAdmin, h.UpdateField)
	route("DELETE", "/api/fields/{id}", AccessAdmin, h.DeleteField)

	route("GET", "/api/groupfolder-fields", AccessUser, h.ListGroupfolderFields)
	route("POST", "/api/groupfolder-fields", AccessAdmin, h.CreateGroupfolderField)
	route("GET", "/api/groupfolder-fields/{id}", AccessUser, h.GetGroupfolderField)
	route("PUT", "/api/groupfolder-fields/{id}", AccessAdmin, h.UpdateGroupfolderField)
	route("DELETE", "/api/groupfolder-fields/{id}", AccessAdmin, h.DeleteGroupfolderField)

	route("GET", "/api/files/{fileId:[0-9]+}/metadata", AccessUser, h.GetFileMetadata)
	route("POST", "/api/files/{fileId:[0-9]+}/metadata", AccessUser, h.SaveFileMetadata)

	route("GET", "/api/groupfolders", AccessUser, h.ListGroupfolders)
	route("POST", "/api/groupfolders", AccessAdmin, h.RegisterGroupfolder)
	route("DELETE", "/api/groupfolders/{groupfolderId:[0-9]+}", AccessAdmin, h.DeleteGroupfolder)
	route("GET", "/api/groupfolders/{groupfolderId:[0-9]+}/metadata", AccessUser, h.GetGroupfolderMetadata)
	route("POST", "/api/groupfolders/{groupfolderId:[0-9]+}/metadata", AccessUser, h.SaveGroupfolderMetadata)
	route("GET", "/api/groupfolders/{groupfolderId:[0-9]+}/files/{fileId:[0-9]+}/metadata", AccessUser, h.GetGroupfolderFileMetadata)
	route("POST", "/api/groupfolders/{groupfolderId:[0-9]+}/files/{fileId:[0-9]+}/metadata", AccessUser, h.SaveGroupfolderFileMetadata)
	route("GET", "/api/groupfolders/{groupfolderId:[0-9]+}/fields", AccessUser, h.GetAssignedFields)
	route("POST", "/api/groupfolders/{groupfolderId:[0-9]+}/fields", AccessAdmin, h.SetAssignedFields)
	route("GET", "/api/groupfolders/{groupfolderId:[0-9]+}/field-overrides", AccessUser, h.GetFieldOverrides)
	route("POST", "/api/groupfolders/{groupfolderId:[0-9]+}/field-overrides", AccessAdmin, h.SaveFieldOverride)
	route("DELETE", "/api/groupfolders/{groupfolderId:[0-9]+}/field-overrides/{fieldId}", AccessAdmin, h.DeleteFieldOverride)

	route("POST", "/api/hooks/file-copied", AccessHook, h.FileCopied)
	route("POST", "/api/hooks/file-created", AccessHook, h.FileCreated)
	route("POST", "/api/hooks/file-deleted", AccessHook, h.FileDeleted)
	route("POST", "/api/hooks/file-restored", AccessHook, h.FileRestored)

	route("GET", "/api/search", AccessUser, h.Search)
	route("GET", "/api/license/usage", AccessAdmin, h.LicenseUsage)
}
