package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/sudo-init-do/quickquid/internal/apperr"
)

// ErrorBody is the error object returned to clients
type ErrorBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
	Details any         `json:"details,omitempty"`
}

// ErrorResponse represents the error response format
type ErrorResponse struct {
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"request_id"`
}

// errorHandler maps domain and transport errors onto ErrorResponse
func errorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := toErrorBody(err)
		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Msg("request failed")
		}

		resp := ErrorResponse{Error: body, RequestID: requestID(c)}
		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, resp)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("failed to write error response")
		}
	}
}

func toErrorBody(err error) (int, ErrorBody) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, ErrorBody{Code: httpCode(he.Code), Message: httpMessage(he)}
	}

	status, code := apperr.Classify(err)
	body := ErrorBody{Code: code, Message: err.Error()}

	var (
		ve *apperr.ValidationError
		ce *apperr.ConflictError
		ne *apperr.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		body.Message = ve.Message
		if len(ve.Fields) > 0 {
			body.Details = ve.Fields
		}
	case errors.As(err, &ce):
		if ce.Current != "" {
			body.Details = map[string]string{"current_status": ce.Current}
		}
	case errors.As(err, &ne):
		body.Details = map[string]string{"resource": ne.Resource, "id": ne.ID}
	case code == apperr.CodeInternal:
		body.Message = "internal server error"
	}
	return status, body
}

func httpCode(status int) apperr.Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		return apperr.CodeValidation
	case http.StatusUnauthorized:
		return apperr.CodeUnauthorized
	case http.StatusForbidden:
		return apperr.CodeForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apperr.CodeNotFound
	case http.StatusConflict:
		return apperr.CodeConflict
	default:
		return apperr.CodeInternal
	}
}

func httpMessage(he *echo.HTTPError) string {
	if msg, ok := he.Message.(string); ok {
		return msg
	}
	return http.StatusText(he.Code)
}

func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
