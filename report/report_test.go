package report_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/resynth/resynth"
	"github.com/resynth/resynth/builtin"
	"github.com/resynth/resynth/engine"
	"github.com/resynth/resynth/host"
	"github.com/resynth/resynth/report"
)

func TestRender(t *testing.T) {
	r, err := report.New()
	if err != nil {
		t.Fatalf("creating the reporter failed: %v", err)
	}
	text, err := r.Render(report.Data{
		Name:     "resynth",
		Path:     "out/program.wasm",
		Module:   "program.wasm",
		T:        1.5,
		Swaps:    2,
		Failures: 1,
		LastSwap: &report.Swap{Old: "a", New: "b", StateBytes: 120, Load: 40 * time.Millisecond, Took: 3 * time.Millisecond, Migration: "unknown format"},
		Peak:     [2]float32{1, 0},
	})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	for _, want := range []string{
		"Resynth devel",
		"program   program.wasm (out/program.wasm)",
		"clock     1.500 s",
		"2 ok, 1 failed",
		"a -> b, 120 bytes in 3ms, loaded in 40ms",
		"state dropped: unknown format",
		"left 0.0 dB, right -inf dB",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in\n%s", want, text)
		}
	}
}

func TestCollect(t *testing.T) {
	h, err := host.New(context.Background(), builtin.Loader{}, "builtin:piano")
	if err != nil {
		t.Fatalf("starting the host failed: %v", err)
	}
	defer h.Close()
	if _, err := h.Swap(context.Background(), "builtin:piano"); err != nil {
		t.Fatalf("swap failed: %v", err)
	}
	meter := engine.NewMeter(1)
	meter.Update(resynth.AudioBuffer{{0.5, 0.25}})
	d := report.Collect("resynth", "v1", h.Status(), meter, 3)
	if d.Module != "builtin:piano" || d.Swaps != 1 || d.Underruns != 3 {
		t.Fatalf("unexpected data %+v", d)
	}
	if d.LastSwap == nil || d.LastSwap.Old != "builtin:piano" || d.LastSwap.Migration != "" {
		t.Fatalf("unexpected last swap %+v", d.LastSwap)
	}
	if d.Peak != [2]float32{0.5, 0.25} {
		t.Fatalf("unexpected peak %v", d.Peak)
	}
}

func TestNewFromTemplates(t *testing.T) {
	dir := t.TempDir()
	tmpl := `{{ define "status" }}{{ .Module | upper }}{{ end }}`
	if err := os.WriteFile(filepath.Join(dir, "status.txt"), []byte(tmpl), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	r, err := report.NewFromTemplates(dir)
	if err != nil {
		t.Fatalf("creating the reporter failed: %v", err)
	}
	text, err := r.Render(report.Data{Module: "piano"})
	if err != nil || text != "PIANO\n" {
		t.Fatalf("expected PIANO, got %q, %v", text, err)
	}
}
