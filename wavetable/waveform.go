package wavetable

import (
	"fmt"
	"math"
	"strings"
)

type (
	Shape int

	// Waveform selects a canonical shape, or a custom harmonic series when
	// Shape is Custom.
	Waveform struct {
		Shape     Shape     `yaml:"shape"`
		Harmonics []float64 `yaml:"harmonics,omitempty,flow"`
	}
)

const (
	Sine Shape = iota
	Triangle
	Saw
	Square
	Custom
	numShapes = Custom
)

var shapeNames = [...]string{"sine", "triangle", "saw", "square", "custom"}

// shapeFuncs are the canonical shapes over one period, x in [0, 1).
var shapeFuncs = [numShapes]func(x float64) float64{
	Sine:     func(x float64) float64 { return math.Sin(2 * math.Pi * x) },
	Triangle: func(x float64) float64 { return math.Asin(math.Sin(2*math.Pi*x)) * 2 / math.Pi },
	Saw:      func(x float64) float64 { return 2*(x-math.Floor(x)) - 1 },
	Square: func(x float64) float64 {
		if x-math.Floor(x) < 0.5 {
			return 1
		}
		return -1
	},
}

// shapeFuncs2D add a modulation axis m in [0, 1]; m = 0 is the canonical
// shape. Square narrows its pulse width from 50% to 5%, Triangle skews its
// rising edge from half of the period towards a ramp.
var shapeFuncs2D = [numShapes]func(x, m float64) float64{
	Triangle: skewedTriangle,
	Square:   pulse,
}

func pulse(x, m float64) float64 {
	duty := 0.5 * (1 - 0.9*m)
	if x-math.Floor(x) < duty {
		return 1
	}
	return -1
}

func skewedTriangle(x, m float64) float64 {
	x -= math.Floor(x)
	w := 0.5 - 0.49*m
	switch {
	case x < w/2:
		return 2 * x / w
	case x < 1-w/2:
		return 1 - 2*(x-w/2)/(1-w)
	default:
		return -1 + 2*(x-(1-w/2))/w
	}
}

func (s Shape) String() string {
	if s < 0 || int(s) >= len(shapeNames) {
		return fmt.Sprintf("shape(%d)", int(s))
	}
	return shapeNames[s]
}

// Next cycles through the canonical shapes; Custom is followed by Sine.
func (s Shape) Next() Shape {
	if s < 0 || s >= Square {
		return Sine
	}
	return s + 1
}

// Modulated reports whether the shape has a modulation axis.
func (s Shape) Modulated() bool {
	return s >= 0 && s < numShapes && shapeFuncs2D[s] != nil
}

func (s Shape) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(shapeNames) {
		return nil, fmt.Errorf("invalid shape %d", int(s))
	}
	return []byte(shapeNames[s]), nil
}

func (s *Shape) UnmarshalText(text []byte) error {
	for i, n := range shapeNames {
		if strings.EqualFold(n, string(text)) {
			*s = Shape(i)
			return nil
		}
	}
	return fmt.Errorf("unknown shape %q", text)
}

// Next returns the waveform with the next canonical shape.
func (w Waveform) Next() Waveform {
	return Waveform{Shape: w.Shape.Next()}
}

func (w Waveform) String() string {
	if w.Shape == Custom {
		return fmt.Sprintf("custom%v", w.Harmonics)
	}
	return w.Shape.String()
}
