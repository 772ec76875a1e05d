package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const genericMessage = "An internal error occurred. Please try again later."

// StatusCode maps an error to its HTTP status.
func StatusCode(e *Error) int {
	switch e.Kind {
	case KindUnauthorized:
		if e.Code == CodeForbidden {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindConfirmationRequired:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// Body renders e as the client-facing JSON object.
func Body(e *Error) map[string]interface{} {
	body := map[string]interface{}{
		"success": false,
		"message": e.Message,
	}
	if e.Kind == KindDatabase {
		body["message"] = genericMessage
	}
	if e.Kind == KindConfirmationRequired {
		body["requires_confirmation"] = true
		body["warnings"] = e.Warnings
	}
	return body
}

// HTTPErrorHandler replaces echo's default handler. Engine errors keep their
// message and status, echo errors keep their code, and anything else becomes
// a generic 500 that is only logged server side.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			status int
			body   map[string]interface{}
		)
		var appErr *Error
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
			status, body = StatusCode(appErr), Body(appErr)
		case errors.As(err, &httpErr):
			status = httpErr.Code
			body = map[string]interface{}{"success": false, "message": httpMessage(httpErr)}
		default:
			status = http.StatusInternalServerError
			body = map[string]interface{}{"success": false, "message": genericMessage}
		}

		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
			body["message"] = genericMessage
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}

func httpMessage(he *echo.HTTPError) string {
	switch m := he.Message.(type) {
	case string:
		if m != "" {
			return m
		}
	case nil:
	default:
		return fmt.Sprint(m)
	}
	return http.StatusText(he.Code)
}
