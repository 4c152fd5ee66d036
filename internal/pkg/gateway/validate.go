package gateway

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// Validate checks a subscription request before any provider call is made.
func (r SubscriptionRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return &ConfigurationError{Reason: "invalid subscription request", Err: err}
	}
	if !r.Amount.IsPositive() {
		return &ConfigurationError{Reason: "invalid subscription request", Err: errors.New("amount must be greater than zero")}
	}
	return nil
}

// ValidateAmount checks the inputs of UpdateSubscriptionAmount.
func ValidateAmount(amount decimal.Decimal, currency string) error {
	if !amount.IsPositive() {
		return &ConfigurationError{Reason: "invalid amount", Err: errors.New("amount must be greater than zero")}
	}
	if err := validate.Var(strings.ToUpper(strings.TrimSpace(currency)), "required,iso4217"); err != nil {
		return &ConfigurationError{Reason: "invalid currency", Err: err}
	}
	return nil
}
