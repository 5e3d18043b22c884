package errors

import (
	"fmt"
)

var (
	ErrNotFound           = fmt.Errorf("not found")
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrFileTooLarge       = fmt.Errorf("file too large")
	ErrUnsupportedType    = fmt.Errorf("unsupported file type")
	ErrUnauthenticated    = fmt.Errorf("unauthenticated")
	ErrInvalidTransition  = fmt.Errorf("invalid status transition")
	ErrReferenceViolation = fmt.Errorf("reference violation")
)
