package models

import "errors"

// Error kinds produced by the analysis pipeline. Concrete errors wrap one of these
// with fmt.Errorf("...: %w", ...) so callers can classify them with errors.Is.
var (
	// ErrInvalidInvestment: bad symbol or non-positive amount. Detected before any I/O.
	ErrInvalidInvestment = errors.New("invalid investment")
	// ErrSymbolNotFound: the exchange confirmed the pair does not exist.
	ErrSymbolNotFound = errors.New("symbol doesn't exist")
	// ErrInsufficientPriceData: fewer samples than an average window needs.
	ErrInsufficientPriceData = errors.New("insufficient price data")
	// ErrExternalService: transport, timeout or payload failure talking to the exchange.
	ErrExternalService = errors.New("external service failure")
	// ErrPersistence: cache or log store failure. Never fatal to an analysis.
	ErrPersistence = errors.New("persistence failure")
)

// Retryable reports whether a caller may retry the operation that produced err.
func Retryable(err error) bool {
	return errors.Is(err, ErrExternalService)
}

// Kind returns a short stable label for the error kind of err, for metrics and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInvestment):
		return "invalid_investment"
	case errors.Is(err, ErrSymbolNotFound):
		return "symbol_not_found"
	case errors.Is(err, ErrInsufficientPriceData):
		return "insufficient_data"
	case errors.Is(err, ErrExternalService):
		return "external_service"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "unexpected"
	}
}

// PublicMessage is the client-safe description of err. Internal details are only
// exposed for validation failures.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInvestment):
		return err.Error()
	case errors.Is(err, ErrSymbolNotFound):
		return "Symbol doesn't exist"
	case errors.Is(err, ErrInsufficientPriceData):
		return "Insufficient price data"
	default:
		return "Server Failure"
	}
}
