package program

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/resynth/resynth/wavetable"
	"gopkg.in/yaml.v3"
)

// State layout: magic, format version, CRC-32 (IEEE) of the body, YAML body.
const (
	FormatVersion = 1
	headerSize    = 4 + 1 + 4
)

var magic = []byte("RSYN")

var (
	ErrTruncated = errors.New("state is truncated")
	ErrChecksum  = errors.New("state checksum mismatch")
	ErrNotState  = errors.New("not a program state")
)

// Encode serializes the full program state.
func (p *Program) Encode() []byte {
	// an empty body restores as defaults
	body, err := yaml.Marshal(p)
	if err != nil {
		body = nil
	}
	ret := make([]byte, headerSize, headerSize+len(body))
	copy(ret, magic)
	ret[4] = FormatVersion
	binary.BigEndian.PutUint32(ret[5:], crc32.ChecksumIEEE(body))
	return append(ret, body...)
}

// Decode restores a program from Encode output of any format version. The
// body is applied on top of the defaults, so fields it lacks keep their
// default values and fields this version does not know are ignored. Out of
// range values are clamped.
func Decode(state []byte, bank *wavetable.Bank) (*Program, error) {
	if len(state) < headerSize {
		return nil, ErrTruncated
	}
	if !bytes.Equal(state[:4], magic) {
		return nil, ErrNotState
	}
	version := state[4]
	if version == 0 {
		return nil, fmt.Errorf("invalid state format version %d", version)
	}
	body := state[headerSize:]
	if crc32.ChecksumIEEE(body) != binary.BigEndian.Uint32(state[5:]) {
		return nil, ErrChecksum
	}
	p := Default(bank)
	if err := yaml.Unmarshal(body, p); err != nil {
		return nil, fmt.Errorf("decoding state version %d failed: %w", version, err)
	}
	p.sanitize()
	if err := p.prepare(); err != nil {
		return nil, fmt.Errorf("state has an unusable waveform: %w", err)
	}
	return p, nil
}

func (p *Program) sanitize() {
	p.Piano.Octave = min(max(p.Piano.Octave, MinOctave), MaxOctave)
	p.Piano.Row = min(max(p.Piano.Row, 0), MaxRow)
	for i, v := range p.Piano.Keys {
		p.Piano.Keys[i] = finite(min(max(v, 0), 1))
	}
	p.Volume = finite(p.Volume)
	p.T = finite(p.T)
	for i := range p.Osc {
		o := &p.Osc[i]
		o.Amp = finite(o.Amp)
		o.Phase = finite(o.Phase)
		o.Detune = finite(o.Detune)
		o.Shape = finite(o.Shape)
		for k := range p.Phases[i] {
			p.Phases[i][k] = finite(p.Phases[i][k])
		}
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
