package ir

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateName = errors.New("duplicate name")
	ErrResourceInUse = errors.New("resource in use")
	ErrVariableInUse = errors.New("variable in use")
	ErrTransport     = errors.New("transport failure")

	// ErrUnsupportedContentType is never fatal: decoders fall back to an empty tree.
	ErrUnsupportedContentType = errors.New("unsupported content type")
)

var (
	ErrDuplicateHeader   = fmt.Errorf("duplicate header: %w", ErrDuplicateName)
	ErrDuplicateStepName = fmt.Errorf("duplicate step name: %w", ErrDuplicateName)
)
