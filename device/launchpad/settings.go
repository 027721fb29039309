package launchpad

import (
	"fmt"
	"strconv"
	"strings"
)

type (
	// Settings is the static configuration sent in the setup handshake.
	Settings struct {
		Mode          Mode          `yaml:"mode"`
		Velocity      Velocity      `yaml:"velocity"`
		Pressure      Pressure      `yaml:"pressure"`
		PressureCurve PressureCurve `yaml:"pressurecurve"`
		Brightness    float64       `yaml:"brightness"`
	}

	Mode          byte
	Pressure      byte
	PressureCurve byte

	// Velocity is a velocity curve, or a fixed velocity when Fixed is
	// non-zero.
	Velocity struct {
		Curve Curve
		Fixed byte
	}

	Curve byte
)

const (
	Live Mode = iota
	Programmer
)

const (
	Low Curve = iota
	Medium
	High
	fixedCurve
)

const (
	Polyphonic Pressure = iota
	Channel
	PressureOff
)

const (
	PressureLow PressureCurve = iota
	PressureMedium
	PressureHigh
)

// DefaultSettings puts the device in programmer mode with medium curves,
// polyphonic aftertouch and full brightness.
var DefaultSettings = Settings{
	Mode:          Programmer,
	Velocity:      Velocity{Curve: Medium},
	Pressure:      Polyphonic,
	PressureCurve: PressureMedium,
	Brightness:    1,
}

func (v Velocity) curve() byte {
	if v.Fixed > 0 {
		return byte(fixedCurve)
	}
	return byte(v.Curve)
}

func (v Velocity) fixed() byte {
	return min(v.Fixed, 0x7F)
}

var (
	modeNames     = []string{"live", "programmer"}
	curveNames    = []string{"low", "medium", "high"}
	pressureNames = []string{"polyphonic", "channel", "off"}
)

func lookup(names []string, s string, what string) (byte, error) {
	for i, n := range names {
		if strings.EqualFold(n, s) {
			return byte(i), nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q, expected one of %v", what, s, names)
}

func name(names []string, i byte) string {
	if int(i) < len(names) {
		return names[i]
	}
	return strconv.Itoa(int(i))
}

func (m Mode) String() string          { return name(modeNames, byte(m)) }
func (p Pressure) String() string      { return name(pressureNames, byte(p)) }
func (p PressureCurve) String() string { return name(curveNames, byte(p)) }

func (v Velocity) String() string {
	if v.Fixed > 0 {
		return strconv.Itoa(int(v.Fixed))
	}
	return name(curveNames, byte(v.Curve))
}

func (m Mode) MarshalYAML() (interface{}, error)          { return m.String(), nil }
func (p Pressure) MarshalYAML() (interface{}, error)      { return p.String(), nil }
func (p PressureCurve) MarshalYAML() (interface{}, error) { return p.String(), nil }
func (v Velocity) MarshalYAML() (interface{}, error)      { return v.String(), nil }

func (m *Mode) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	b, err := lookup(modeNames, s, "mode")
	*m = Mode(b)
	return err
}

func (p *Pressure) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	b, err := lookup(pressureNames, s, "pressure mode")
	*p = Pressure(b)
	return err
}

func (p *PressureCurve) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	b, err := lookup(curveNames, s, "pressure curve")
	*p = PressureCurve(b)
	return err
}

// UnmarshalYAML accepts a curve name or a fixed velocity between 1 and 127.
func (v *Velocity) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 0x7F {
			return fmt.Errorf("fixed velocity %d out of range 1..127", n)
		}
		*v = Velocity{Fixed: byte(n)}
		return nil
	}
	b, err := lookup(curveNames, s, "velocity curve")
	*v = Velocity{Curve: Curve(b)}
	return err
}
