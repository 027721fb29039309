// Package wavetable implements table lookup oscillators. All tables live in a
// Bank, which is created once and shared by every oscillator; tables are
// computed on first use and kept for the lifetime of the Bank.
package wavetable

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	vecmath "github.com/cwbudde/algo-vecmath"
)

type (
	Bank struct {
		tables   [numShapes]lazyTable
		tables2D [numShapes]lazyTable2D

		mutex  sync.RWMutex
		custom map[string]*Table
	}

	lazyTable struct {
		once  sync.Once
		table *Table
	}

	lazyTable2D struct {
		once  sync.Once
		table *Table2D
	}
)

// MaxHarmonics limits the length of a custom harmonic series.
const MaxHarmonics = 256

var (
	errTooManyHarmonics = fmt.Errorf("a custom waveform can have at most %d harmonics", MaxHarmonics)
	errSilentHarmonics  = errors.New("a custom waveform needs at least one non-zero harmonic")
)

var defaultBank = NewBank()

// DefaultBank returns the process-wide bank.
func DefaultBank() *Bank {
	return defaultBank
}

func NewBank() *Bank {
	return &Bank{custom: map[string]*Table{}}
}

// Table returns the one-dimensional table of a canonical shape, building it
// on first use. Custom has no canonical table and returns nil.
func (b *Bank) Table(s Shape) *Table {
	if s < 0 || s >= numShapes {
		return nil
	}
	l := &b.tables[s]
	l.once.Do(func() {
		l.table = NewTable(TableSize, shapeFuncs[s])
	})
	return l.table
}

// Table2D returns the two-dimensional table of a shape with a modulation
// axis, or nil if the shape has none.
func (b *Bank) Table2D(s Shape) *Table2D {
	if s < 0 || s >= numShapes || shapeFuncs2D[s] == nil {
		return nil
	}
	l := &b.tables2D[s]
	l.once.Do(func() {
		l.table = NewTable2D(Table2DSize, Rows, shapeFuncs2D[s])
	})
	return l.table
}

// Warm builds every canonical table. Call it before audio starts so that no
// table is built on the audio thread.
func (b *Bank) Warm() {
	for s := Shape(0); s < numShapes; s++ {
		b.Table(s)
		b.Table2D(s)
	}
}

// Custom returns the table of a harmonic series, where harmonics[k] is the
// amplitude of the sine at k+1 times the fundamental. The sum is normalized
// to a peak of 1. Tables are cached by series, so building the same series
// twice returns the same table.
func (b *Bank) Custom(harmonics []float64) (*Table, error) {
	key, err := signature(harmonics)
	if err != nil {
		return nil, err
	}
	b.mutex.RLock()
	t, ok := b.custom[key]
	b.mutex.RUnlock()
	if ok {
		return t, nil
	}
	t, err = b.additive(harmonics)
	if err != nil {
		return nil, err
	}
	b.mutex.Lock()
	if existing, ok := b.custom[key]; ok {
		t = existing
	} else {
		b.custom[key] = t
	}
	b.mutex.Unlock()
	return t, nil
}

func (b *Bank) additive(harmonics []float64) (*Table, error) {
	sine := b.Table(Sine)
	n := sine.Len()
	sum := make([]float64, n)
	partial := make([]float64, n)
	basis := make([]float64, n)
	for k, amp := range harmonics {
		if amp == 0 {
			continue
		}
		h := k + 1
		for i := range basis {
			basis[i] = sine.data[(i*h)%n]
		}
		vecmath.ScaleBlock(partial, basis, amp)
		vecmath.AddBlockInPlace(sum, partial)
	}
	peak := vecmath.MaxAbs(sum)
	if peak == 0 || math.IsNaN(peak) || math.IsInf(peak, 0) {
		return nil, errSilentHarmonics
	}
	vecmath.ScaleBlockInPlace(sum, 1/peak)
	return &Table{data: sum}, nil
}

func signature(harmonics []float64) (string, error) {
	if len(harmonics) > MaxHarmonics {
		return "", errTooManyHarmonics
	}
	buf := make([]byte, 8*len(harmonics))
	for i, h := range harmonics {
		if math.IsNaN(h) || math.IsInf(h, 0) {
			return "", fmt.Errorf("harmonic %d is not a finite number", i+1)
		}
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(h))
	}
	return string(buf), nil
}
