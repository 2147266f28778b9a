package http

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal parses a client supplied amount. Exponents and surrounding blanks are accepted.
func ParseDecimal(field, s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, BadRequestErrorf("%s must be a number", field).WithError(fmt.Errorf("parse %s: %w", field, err))
	}
	return v, nil
}
