package wavetable

import (
	"math"
)

type (
	// Table is one period of a waveform sampled at evenly spaced points.
	// Lookups interpolate linearly and wrap around, so the waveform is
	// exactly periodic with period 1.
	Table struct {
		data []float64
	}

	// Table2D is a stack of periodic tables along a secondary axis m in
	// [0, 1]. Row k holds the waveform at m = k/(rows-1). The primary axis
	// wraps, the secondary axis is clamped.
	Table2D struct {
		rows  [][]float64
		width int
	}
)

const (
	TableSize   = 1024 * 10
	Table2DSize = 2048
	Rows        = 128
)

// NewTable samples f at x = i/size for i in [0, size).
func NewTable(size int, f func(x float64) float64) *Table {
	data := make([]float64, size)
	for i := range data {
		data[i] = f(float64(i) / float64(size))
	}
	return &Table{data: data}
}

// NewTable2D samples f at x = i/width for every row, with m = k/(rows-1) on
// row k.
func NewTable2D(width, rows int, f func(x, m float64) float64) *Table2D {
	ret := &Table2D{rows: make([][]float64, rows), width: width}
	for k := range ret.rows {
		m := 0.0
		if rows > 1 {
			m = float64(k) / float64(rows-1)
		}
		row := make([]float64, width)
		for i := range row {
			row[i] = f(float64(i)/float64(width), m)
		}
		ret.rows[k] = row
	}
	return ret
}

// Len returns the number of samples in one period.
func (t *Table) Len() int {
	return len(t.data)
}

// At returns the interpolated value at position x, in periods.
func (t *Table) At(x float64) float64 {
	if t == nil || len(t.data) == 0 {
		return 0
	}
	i0, i1, frac := position(x, len(t.data))
	return lerp(t.data[i0], t.data[i1], frac)
}

// At returns the value at position x, in periods, and secondary axis m,
// interpolating along x on the two nearest rows and then between the rows.
func (t *Table2D) At(x, m float64) float64 {
	if t == nil || len(t.rows) == 0 || t.width == 0 {
		return 0
	}
	i0, i1, frac := position(x, t.width)
	if len(t.rows) == 1 {
		return lerp(t.rows[0][i0], t.rows[0][i1], frac)
	}
	if math.IsNaN(m) {
		m = 0
	}
	m = min(max(m, 0), 1) * float64(len(t.rows)-1)
	k0 := int(m)
	k1 := min(k0+1, len(t.rows)-1)
	mfrac := m - float64(k0)
	v0 := lerp(t.rows[k0][i0], t.rows[k0][i1], frac)
	v1 := lerp(t.rows[k1][i0], t.rows[k1][i1], frac)
	return lerp(v0, v1, mfrac)
}

// position returns the two neighboring indices of x, wrapped modulo n, and
// the interpolation weight of the second.
func position(x float64, n int) (i0, i1 int, frac float64) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, 1 % n, 0
	}
	p := (x - math.Floor(x)) * float64(n)
	i0 = int(p)
	frac = p - float64(i0)
	if i0 >= n {
		i0, frac = 0, 0
	}
	i1 = i0 + 1
	if i1 >= n {
		i1 = 0
	}
	return i0, i1, frac
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
