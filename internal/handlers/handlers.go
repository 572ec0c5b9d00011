// Package handlers implements the HTTP API of the metadata service.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"groupfolderMetadata/internal/metrics"
	"groupfolderMetadata/internal/services"
	"groupfolderMetadata/internal/utils"
)

// SchemaVersionHeader carries a groupfolder's schema version after a schema write
const SchemaVersionHeader = "X-Schema-Version"

const maxBodyBytes = 1 << 20

// Handlers serves the metadata API
type Handlers struct {
	svc     *services.Services
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates the API handlers. m may be nil.
func New(svc *services.Services, logger *zap.Logger, m *metrics.Metrics) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{svc: svc, logger: logger, metrics: m}
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	utils.RespondWithServiceError(w, r, h.logger, err)
}

// decodeJSON reads a JSON body into dst. Numbers are kept as json.Number so metadata values
// keep their exact textual form.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		utils.BadRequestError(w, "Request body too large")
		return false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		utils.BadRequestError(w, "Invalid request body")
		return false
	}
	return true
}

func pathInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		utils.BadRequestError(w, fmt.Sprintf("Invalid %s", name))
		return 0, false
	}
	return id, true
}

func queryInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		utils.BadRequestError(w, name+" is required")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		utils.BadRequestError(w, fmt.Sprintf("Invalid %s", name))
		return 0, false
	}
	return id, true
}

// expectedVersion reads the optional expected_version query parameter
func expectedVersion(w http.ResponseWriter, r *http.Request) (*int64, bool) {
	raw := r.URL.Query().Get("expected_version")
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		utils.BadRequestError(w, "Invalid expected_version")
		return nil, false
	}
	return &v, true
}

func setSchemaVersion(w http.ResponseWriter, version int64) {
	w.Header().Set(SchemaVersionHeader, strconv.FormatInt(version, 10))
}

func isValidation(err error) bool {
	return errors.Is(err, services.ErrValidation)
}

func muxVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}
