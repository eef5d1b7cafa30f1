package v1

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/hrygo/orioncx/internal/errors"
	"github.com/hrygo/orioncx/server/internal/observability"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error *ErrorDetail `json:"error"`
}

// ErrorDetail describes one error.
type ErrorDetail struct {
	Type    string         `json:"type"`
	Code    string         `json:"code"`
	Status  int            `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

// HTTPErrorHandler renders domain errors as ErrorBody. Echo errors keep
// their status; anything else is reported as an opaque internal error.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	detail := toErrorDetail(err)
	if detail.Status >= http.StatusInternalServerError {
		logError(c, detail, err)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(detail.Status)
	} else {
		writeErr = c.JSON(detail.Status, ErrorBody{Error: detail})
	}
	if writeErr != nil {
		slog.Warn("failed to write error response", "error", writeErr)
	}
}

func toErrorDetail(err error) *ErrorDetail {
	if e, ok := apperrors.As(err); ok {
		details := e.Details
		if details == nil {
			details = map[string]any{}
		}
		return &ErrorDetail{
			Type:    string(e.Kind),
			Code:    e.Code,
			Status:  e.HTTPStatus(),
			Message: e.Message,
			Details: details,
		}
	}

	if he, ok := err.(*echo.HTTPError); ok {
		kind := apperrors.KindBadRequest
		switch {
		case he.Code == http.StatusNotFound || he.Code == http.StatusMethodNotAllowed:
			kind = apperrors.KindNotFound
		case he.Code == http.StatusTooManyRequests:
			kind = apperrors.KindRateLimitExceeded
		case he.Code >= http.StatusInternalServerError:
			kind = apperrors.KindInternal
		}
		return &ErrorDetail{
			Type:    string(kind),
			Code:    string(kind),
			Status:  he.Code,
			Message: fmt.Sprint(he.Message),
			Details: map[string]any{},
		}
	}

	return &ErrorDetail{
		Type:    string(apperrors.KindInternal),
		Code:    string(apperrors.KindInternal),
		Status:  http.StatusInternalServerError,
		Message: "internal server error",
		Details: map[string]any{},
	}
}

func logError(c echo.Context, detail *ErrorDetail, err error) {
	if rc, ok := observability.FromContext(c.Request().Context()); ok {
		rc.Error("request failed", err,
			slog.String(observability.LogFieldErrorCode, detail.Code),
			slog.Int("status", detail.Status))
		return
	}
	slog.Error("request failed", "error", err, "code", detail.Code, "status", detail.Status)
}
