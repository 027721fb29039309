package resynth

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingArtifact is wrapped by a LoadError when the artifact does
	// not exist.
	ErrMissingArtifact = errors.New("artifact not found")
	// ErrMissingSymbol is wrapped by a LoadError when the artifact lacks a
	// required operation or exports it with the wrong signature.
	ErrMissingSymbol = errors.New("required symbol missing")
	// ErrPortNotFound is wrapped by a DeviceConnectError when no port name
	// matches.
	ErrPortNotFound = errors.New("port not found")
	// ErrNoState is wrapped by a StateMigrationError when the old Instance
	// produced no state to carry across.
	ErrNoState = errors.New("the old instance produced no state")
)

type (
	// LoadError reports an artifact that could not be turned into a Module.
	// It is fatal at startup; during a reload the previous Module stays
	// active.
	LoadError struct {
		Path   string
		Symbol string
		Err    error
	}

	// StateMigrationError reports state bytes that the new Module could not
	// restore. The swap recovers by constructing a default Instance.
	StateMigrationError struct {
		Module string
		Err    error
	}

	// DeviceConnectError reports a control surface port that could not be
	// opened.
	DeviceConnectError struct {
		Port      string
		Direction string
		Err       error
	}
)

func (e *LoadError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("loading %s failed: symbol %s: %v", e.Path, e.Symbol, e.Err)
	}
	return fmt.Sprintf("loading %s failed: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *StateMigrationError) Error() string {
	return fmt.Sprintf("restoring state into %s failed: %v", e.Module, e.Err)
}

func (e *StateMigrationError) Unwrap() error { return e.Err }

func (e *DeviceConnectError) Error() string {
	return fmt.Sprintf("connecting %s port %q failed: %v", e.Direction, e.Port, e.Err)
}

func (e *DeviceConnectError) Unwrap() error { return e.Err }
