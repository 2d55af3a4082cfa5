package apperror

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// statusKinds maps bare HTTP statuses (from echo itself, e.g. 404 on an
// unknown route) onto envelope kinds.
var statusKinds = map[int]string{
	http.StatusBadRequest:          "bad_request",
	http.StatusUnauthorized:        "unauthorized",
	http.StatusForbidden:           "forbidden",
	http.StatusNotFound:            "not_found",
	http.StatusMethodNotAllowed:    "bad_request",
	http.StatusConflict:            "version_conflict",
	http.StatusUnprocessableEntity: "unprocessable_entity",
	http.StatusServiceUnavailable:  "graph_unavailable",
}

// HTTPErrorHandler returns an Echo error handler that writes the
// {error, message} envelope for every failure.
func HTTPErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		body := map[string]any{
			"error":   "internal_server_error",
			"message": "An internal error occurred",
		}

		if appErr, ok := As(err); ok {
			code = appErr.HTTPStatus
			body = appErr.Envelope()
		} else if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			switch msg := he.Message.(type) {
			case map[string]any:
				for k, v := range msg {
					body[k] = v
				}
			case string:
				body["message"] = msg
				if kind, ok := statusKinds[code]; ok {
					body["error"] = kind
				}
			}
		}

		if code >= 500 {
			log.Error("request error",
				slog.Int("status", code),
				slog.String("error", err.Error()),
			)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
		} else {
			_ = c.JSON(code, body)
		}
	}
}
