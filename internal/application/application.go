package application

import (
	"context"
	"errors"
	"fmt"
)

// ErrValidation marks malformed input: the caller must change the request, not retry it.
var ErrValidation = errors.New("validation failed")

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

// IDGenerator hands out identifiers for new aggregates.
type IDGenerator interface {
	NewID() string
}

// Validation wraps msg so errors.Is(err, ErrValidation) holds.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// ValidationErr wraps a domain error as a validation failure, keeping it matchable.
func ValidationErr(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}
