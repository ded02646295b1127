package handlers

import (
	"errors"
	"net/http"

	"github.com/vinodhsukumarvictor/Church-Bible-App/internal/observability"
	"github.com/vinodhsukumarvictor/Church-Bible-App/middleware"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services"
	"github.com/vinodhsukumarvictor/Church-Bible-App/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses. Only the domain
// message reaches the client; wrapped backend errors are logged.
func HandleServiceError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	requestID := middleware.GetRequestIDFromContext(r.Context())
	message := services.GetErrorMessage(err)
	details := services.GetErrorDetails(err)

	var writeErr error
	switch {
	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, message, details)

	case services.IsUnauthorizedError(err):
		writeErr = utils.WriteUnauthorized(w, message)

	case services.IsForbiddenError(err):
		writeErr = utils.WriteForbidden(w, message)

	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, message)

	case services.IsRateLimitError(err):
		writeErr = utils.WriteTooManyRequests(w, message, 0)

	case services.IsNotConfiguredError(err):
		logger.Error("backend not configured",
			zap.String("request_id", requestID),
			zap.String("path", r.URL.Path),
			zap.String("reason", message))
		writeErr = utils.WriteInternalServerError(w, message)

	case services.IsExternalError(err):
		// Upstream errors keep the upstream status when it is an error status
		status := http.StatusBadGateway
		if s, ok := details["status"].(int); ok && s >= 400 && s <= 599 {
			status = s
		}
		logger.Warn("upstream request failed",
			zap.String("request_id", requestID),
			zap.Int("status", status),
			zap.Error(err))
		writeErr = utils.WriteJSON(w, status, utils.ErrorResponse{
			Error:   "upstream_error",
			Message: message,
			Details: details,
		})

	case services.IsInternalError(err):
		logger.Error("internal server error",
			zap.String("request_id", requestID),
			zap.Error(err))
		observability.CaptureError(r.Context(), err)
		writeErr = utils.WriteInternalServerError(w, "")

	default:
		logger.Error("unhandled error type",
			zap.String("request_id", requestID),
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		observability.CaptureError(r.Context(), err)
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles errors from request decoding and struct
// validation
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	message := "Invalid request body"
	var ve *utils.ValidationError
	if errors.As(err, &ve) {
		message = ve.Message
	}
	if err := utils.WriteBadRequest(w, message, utils.FieldDetails(err)); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
