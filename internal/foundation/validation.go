package foundation

import (
	"fmt"
	"math"
	"strings"

	"git.home.luguber.info/inful/stargazer/internal/foundation/errors"
)

// Validator represents a validation function.
type Validator[T any] func(T) ValidationResult

// ValidationResult contains the result of a validation operation.
type ValidationResult struct {
	Errors []FieldError
}

// FieldError represents a single validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (fe FieldError) Error() string {
	if fe.Field != "" {
		return fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return fe.Message
}

// Valid creates a successful validation result.
func Valid() ValidationResult { return ValidationResult{} }

// Invalid creates a failed validation result.
func Invalid(field, code, message string) ValidationResult {
	return ValidationResult{Errors: []FieldError{{Field: field, Code: code, Message: message}}}
}

// OK reports whether no validator failed.
func (vr ValidationResult) OK() bool { return len(vr.Errors) == 0 }

// Combine merges two validation results.
func (vr ValidationResult) Combine(other ValidationResult) ValidationResult {
	if other.OK() {
		return vr
	}
	merged := make([]FieldError, 0, len(vr.Errors)+len(other.Errors))
	merged = append(merged, vr.Errors...)
	merged = append(merged, other.Errors...)
	return ValidationResult{Errors: merged}
}

// ToError converts an invalid result into a validation ClassifiedError
// carrying the field errors in its context.
func (vr ValidationResult) ToError() error {
	if vr.OK() {
		return nil
	}
	messages := make([]string, 0, len(vr.Errors))
	for _, fe := range vr.Errors {
		messages = append(messages, fe.Error())
	}
	return errors.ValidationError(strings.Join(messages, "; ")).
		WithContext("fields", vr.Errors).
		Build()
}

// ValidatorChain runs several validators and collects every failure.
type ValidatorChain[T any] struct {
	validators []Validator[T]
}

// NewValidatorChain creates a new validator chain.
func NewValidatorChain[T any](validators ...Validator[T]) *ValidatorChain[T] {
	return &ValidatorChain[T]{validators: validators}
}

// Validate runs all validators in the chain.
func (vc *ValidatorChain[T]) Validate(value T) ValidationResult {
	result := Valid()
	for _, v := range vc.validators {
		result = result.Combine(v(value))
	}
	return result
}

// InRange checks that the float selected by get is finite and within [lo, hi].
func InRange[T any](field string, lo, hi float64, get func(T) float64) Validator[T] {
	return func(value T) ValidationResult {
		v := get(value)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Invalid(field, "not_finite", "must be a finite number")
		}
		if v < lo || v > hi {
			return Invalid(field, "out_of_range", fmt.Sprintf("must be within [%g, %g]", lo, hi))
		}
		return Valid()
	}
}

// Finite checks that the float selected by get is neither NaN nor infinite.
func Finite[T any](field string, get func(T) float64) Validator[T] {
	return func(value T) ValidationResult {
		v := get(value)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Invalid(field, "not_finite", "must be a finite number")
		}
		return Valid()
	}
}

// OneOf validates that the value selected by get is in a set of allowed values.
func OneOf[T any, V comparable](field string, allowed []V, get func(T) V) Validator[T] {
	set := make(map[V]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(value T) ValidationResult {
		if _, ok := set[get(value)]; !ok {
			return Invalid(field, "one_of", fmt.Sprintf("must be one of: %v", allowed))
		}
		return Valid()
	}
}
