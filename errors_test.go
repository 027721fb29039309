package resynth_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/resynth/resynth"
)

func TestErrorsUnwrap(t *testing.T) {
	var err error = &resynth.LoadError{Path: "program.wasm", Symbol: "sample", Err: resynth.ErrMissingSymbol}
	err = fmt.Errorf("reload failed: %w", err)
	if !errors.Is(err, resynth.ErrMissingSymbol) {
		t.Fatalf("errors.Is should find ErrMissingSymbol in %v", err)
	}
	var loadErr *resynth.LoadError
	if !errors.As(err, &loadErr) || loadErr.Symbol != "sample" {
		t.Fatalf("errors.As should find the LoadError in %v", err)
	}
	migration := &resynth.StateMigrationError{Module: "piano", Err: resynth.ErrMissingArtifact}
	if !errors.Is(migration, resynth.ErrMissingArtifact) {
		t.Fatalf("StateMigrationError should unwrap")
	}
	connect := &resynth.DeviceConnectError{Port: "Launchpad X", Direction: "in", Err: resynth.ErrPortNotFound}
	if !errors.Is(connect, resynth.ErrPortNotFound) {
		t.Fatalf("DeviceConnectError should unwrap")
	}
	if connect.Error() != `connecting in port "Launchpad X" failed: port not found` {
		t.Fatalf("unexpected message: %v", connect)
	}
}
