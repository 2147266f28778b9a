package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// SuccessResponse writes data as the bare JSON body with 200.
func SuccessResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

// AcceptedTaskResponse writes 202 with the queued task id.
func AcceptedTaskResponse(c echo.Context, taskID string) error {
	return c.JSON(http.StatusAccepted, AcceptedResponse{TaskID: taskID, Status: "queued"})
}

// AppErrorResponse writes err in the error envelope. Non-AppErrors become a 500.
func AppErrorResponse(c echo.Context, err error) error {
	appErr := AsAppError(err)
	return c.JSON(appErr.Status, appErr)
}

// ErrorHandler renders every error that escapes a handler, echo's own included,
// in the AppError envelope.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		appErr := NewAppError("ERR_HTTP", "", he.Code)
		if he.Code >= http.StatusInternalServerError {
			appErr.Message = ServerFailure
		} else {
			appErr.Detail = http.StatusText(he.Code)
			if msg, ok := he.Message.(string); ok && msg != "" {
				appErr.Detail = msg
			}
		}
		err = appErr
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(AsAppError(err).Status)
		return
	}
	_ = AppErrorResponse(c, err)
}
