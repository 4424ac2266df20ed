package terminal

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable    = errors.New("terminal unavailable")
	ErrSymbolNotFound = errors.New("symbol not found")
	ErrNoTickData     = errors.New("no tick data")
	ErrTransientFault = errors.New("transient fault")
	ErrUnsupported    = errors.New("not supported by terminal")
)

// UnavailableError reports a terminal that could not be initialized.
type UnavailableError struct {
	Last  LastError
	Cause error
}

func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("terminal unavailable: %v", e.Cause)
	}
	return "terminal unavailable: " + e.Last.Message
}

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

func (e *UnavailableError) Unwrap() error { return e.Cause }

// FaultError wraps a panic raised while the terminal was held.
type FaultError struct {
	Op    string
	Value any
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("fault during %s: %v", e.Op, e.Value)
}

func (e *FaultError) Is(target error) bool { return target == ErrTransientFault }

// Unavailable reports whether err means the terminal is down.
func Unavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
