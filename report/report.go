// Package report renders the status of a running instrument as text.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/resynth/resynth/engine"
	"github.com/resynth/resynth/host"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type (
	Reporter struct {
		Template *template.Template
	}

	// Data is everything a report shows. It contains only plain values so it
	// can be sent over the wire.
	Data struct {
		Name      string
		Version   string
		Path      string
		Module    string
		T         float64
		Swaps     int
		Failures  int
		Overruns  int64
		Underruns int64
		LastSwap  *Swap
		Peak      [2]float32
		RMS       [2]float32
		Clips     int64
	}

	Swap struct {
		Old, New   string
		StateBytes int
		Load       time.Duration
		Took       time.Duration
		Migration  string
	}
)

//go:embed templates/*
var templateFS embed.FS

func funcs() template.FuncMap {
	caser := cases.Title(language.English)
	m := sprig.TxtFuncMap()
	m["title"] = caser.String
	m["db"] = func(v float32) string {
		d := engine.Decibels(v)
		if math.IsInf(d, -1) {
			return "-inf"
		}
		return fmt.Sprintf("%.1f", d)
	}
	return m
}

// New returns a reporter using the built-in templates.
func New() (*Reporter, error) {
	tmpl, err := template.New("base").Funcs(funcs()).ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("could not create templates: %w", err)
	}
	return &Reporter{Template: tmpl}, nil
}

// NewFromTemplates parses the templates in the directory instead. They must
// define "status".
func NewFromTemplates(dir string) (*Reporter, error) {
	tmpl, err := template.New("base").Funcs(funcs()).ParseGlob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf(`could not create templates from directory "%v": %w`, dir, err)
	}
	return &Reporter{Template: tmpl}, nil
}

// Collect gathers the report data. The meter may be nil.
func Collect(name, version string, st host.Status, meter *engine.Meter, underruns int64) Data {
	d := Data{
		Name:      name,
		Version:   version,
		Path:      st.Path,
		Module:    st.Module,
		T:         st.T,
		Swaps:     st.Swaps,
		Failures:  st.Failures,
		Overruns:  st.Overruns,
		Underruns: underruns,
	}
	if st.Swaps > 0 {
		s := st.LastSwap
		d.LastSwap = &Swap{Old: s.Old, New: s.New, StateBytes: s.StateBytes, Load: s.Load, Took: s.Took}
		if s.Migration != nil {
			d.LastSwap.Migration = s.Migration.Error()
		}
	}
	if meter != nil {
		l := meter.Level()
		d.Peak, d.RMS, d.Clips = l.Peak, l.RMS, meter.Clips()
	}
	return d
}

func (r *Reporter) Render(d Data) (string, error) {
	var buf bytes.Buffer
	if err := r.Template.ExecuteTemplate(&buf, "status", d); err != nil {
		return "", fmt.Errorf(`could not execute template "status": %w`, err)
	}
	return strings.TrimRight(buf.String(), "\n") + "\n", nil
}
