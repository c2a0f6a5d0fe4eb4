package domain

import (
	"errors"
	"fmt"
)

var (
	ErrIndexNotFound   = errors.New("index artifacts not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrRetrieval       = errors.New("retrieval failure")
	ErrGeneration      = errors.New("generation failure")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTemporary       = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
