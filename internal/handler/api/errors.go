package api

import (
	"errors"

	"DWML/internal/domain/models"
	xhttp "DWML/pkg/http"
)

// toAppError maps domain error kinds to status codes. Anything unclassified is a 500
// that keeps the cause for logging only.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, models.ErrInvalidInvestment):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrSymbolNotFound):
		return xhttp.NotFoundError(models.PublicMessage(err)).WithError(err)
	case errors.Is(err, models.ErrInsufficientPriceData):
		return xhttp.ServiceUnavailableError().WithDetail(models.PublicMessage(err)).WithError(err)
	case errors.Is(err, models.ErrExternalService):
		return xhttp.ServiceUnavailableError().WithError(err)
	default:
		return xhttp.InternalError().WithError(err)
	}
}
