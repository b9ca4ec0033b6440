package circuit

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrUnknownTerminal = errors.New("unknown terminal")
	ErrArityMismatch   = errors.New("terminal count mismatch")
	ErrNotFound        = errors.New("name not found")
	ErrDeviceNotFound  = errors.New("device not found")
	ErrInvalidInstance = errors.New("invalid instance")
)

type UnknownTerminalError struct {
	Terminal  string
	Terminals []string
}

func (e *UnknownTerminalError) Error() string {
	return fmt.Sprintf("terminal %q is not defined (terminals: %s)", e.Terminal, strings.Join(e.Terminals, ", "))
}

func (e *UnknownTerminalError) Is(target error) bool { return target == ErrUnknownTerminal }

type ArityMismatchError struct {
	Want int
	Got  int
}

func (e *ArityMismatchError) Error() string {
	return fmt.Sprintf("expected %d terminal nodes, got %d", e.Want, e.Got)
}

func (e *ArityMismatchError) Is(target error) bool { return target == ErrArityMismatch }

// NotFoundError reports the path segment that failed to resolve.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%q not found", e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type DeviceNotFoundError struct {
	Instance string
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("instance %q not found", e.Instance)
}

func (e *DeviceNotFoundError) Is(target error) bool { return target == ErrDeviceNotFound }
