package safety

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	maxReasonablePrice    = decimal.NewFromInt(10_000_000_000)
	maxReasonableQuantity = decimal.NewFromInt(1_000_000_000_000)
)

// ValidationResult represents the result of a validation check
type ValidationResult struct {
	Valid   bool
	Message string
	Code    string
}

func invalid(code, format string, args ...interface{}) ValidationResult {
	return ValidationResult{Valid: false, Message: fmt.Sprintf(format, args...), Code: code}
}

// Validator checks order inputs before they reach the risk ledger
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePrice validates a price value
func (v *Validator) ValidatePrice(price decimal.Decimal, symbol string) ValidationResult {
	if !price.IsPositive() {
		return invalid("INVALID_PRICE_NON_POSITIVE", "invalid price %s for %s: price must be positive", price, symbol)
	}
	if price.GreaterThan(maxReasonablePrice) {
		return invalid("PRICE_OUT_OF_BOUNDS", "suspicious price %s for %s: exceeds reasonable bounds", price, symbol)
	}
	return ValidationResult{Valid: true}
}

// ValidateQuantity validates a signed order quantity. Sells are negative; zero
// is rejected.
func (v *Validator) ValidateQuantity(quantity decimal.Decimal, symbol string) ValidationResult {
	if quantity.IsZero() {
		return invalid("INVALID_QUANTITY_ZERO", "invalid quantity for %s: quantity must be non-zero", symbol)
	}
	if quantity.Abs().GreaterThan(maxReasonableQuantity) {
		return invalid("QUANTITY_OUT_OF_BOUNDS", "suspicious quantity %s for %s: exceeds reasonable bounds", quantity, symbol)
	}
	return ValidationResult{Valid: true}
}

// ValidateSymbol validates a trading symbol format
func (v *Validator) ValidateSymbol(symbol string) ValidationResult {
	if strings.TrimSpace(symbol) == "" {
		return invalid("SYMBOL_EMPTY", "symbol cannot be empty")
	}
	if len(symbol) > 32 {
		return invalid("SYMBOL_TOO_LONG", "symbol '%s' too long: maximum 32 characters allowed", symbol)
	}
	for _, char := range symbol {
		alnum := (char >= 'A' && char <= 'Z') || (char >= 'a' && char <= 'z') || (char >= '0' && char <= '9')
		if !alnum && char != '-' && char != '_' && char != '/' {
			return invalid("SYMBOL_INVALID_CHARS", "symbol '%s' contains invalid characters", symbol)
		}
	}
	return ValidationResult{Valid: true}
}

// ValidateOrder validates symbol, quantity and price in that order
func (v *Validator) ValidateOrder(symbol string, quantity, price decimal.Decimal) ValidationResult {
	if r := v.ValidateSymbol(symbol); !r.Valid {
		return r
	}
	if r := v.ValidateQuantity(quantity, symbol); !r.Valid {
		return r
	}
	return v.ValidatePrice(price, symbol)
}
