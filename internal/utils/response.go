package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"groupfolderMetadata/internal/services"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Code    int               `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// SuccessResponse represents a standardized success response
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(w http.ResponseWriter, code int, message string) {
	writeError(w, ErrorResponse{
		Error:   getErrorType(code),
		Message: message,
		Code:    code,
	})
}

// RespondWithJSON sends a standardized JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}

// RespondWithSuccess sends a standardized success response
func RespondWithSuccess(w http.ResponseWriter, data interface{}, message string) {
	RespondWithJSON(w, http.StatusOK, SuccessResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// StatusForError maps a service error to its HTTP status code
func StatusForError(err error) int {
	switch services.KindOf(err) {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	case services.KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// RespondWithServiceError answers err with the matching status. Unexpected failures are
// logged and reported without detail.
func RespondWithServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	code := StatusForError(err)
	if code == http.StatusInternalServerError {
		if logger != nil {
			logger.Error("request failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("request_id", GetRequestID(r)),
				zap.Error(err))
		}
		InternalServerError(w, "Internal server error")
		return
	}

	resp := ErrorResponse{Error: getErrorType(code), Message: err.Error(), Code: code}
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		resp.Message = svcErr.Message
		resp.Fields = svcErr.Fields
	}
	writeError(w, resp)
}

func writeError(w http.ResponseWriter, resp ErrorResponse) {
	RespondWithJSON(w, resp.Code, resp)
}

// Common error response functions
func AuthenticationError(w http.ResponseWriter) {
	RespondWithError(w, http.StatusUnauthorized, "Authentication required")
}

func AuthorizationError(w http.ResponseWriter) {
	RespondWithError(w, http.StatusForbidden, "Insufficient permissions")
}

func BadRequestError(w http.ResponseWriter, message string) {
	RespondWithError(w, http.StatusBadRequest, message)
}

func NotFoundError(w http.ResponseWriter, resource string) {
	RespondWithError(w, http.StatusNotFound, resource+" not found")
}

func InternalServerError(w http.ResponseWriter, message string) {
	RespondWithError(w, http.StatusInternalServerError, message)
}

// getErrorType returns a human-readable error type based on status code
func getErrorType(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "Bad Request"
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusNotFound:
		return "Not Found"
	case http.StatusMethodNotAllowed:
		return "Method Not Allowed"
	case http.StatusConflict:
		return "Conflict"
	case http.StatusTooManyRequests:
		return "Rate Limited"
	case http.StatusInternalServerError:
		return "Internal Server Error"
	case http.StatusServiceUnavailable:
		return "Service Unavailable"
	default:
		return "Error"
	}
}
