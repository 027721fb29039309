package oto

import (
	"encoding/binary"
	"math"

	"github.com/resynth/resynth"
)

// PutFloat32LE writes the frames of buf into dst as interleaved 32-bit
// little-endian floats and returns the number of bytes written. dst must hold
// 8 bytes per frame.
func PutFloat32LE(dst []byte, buf resynth.AudioBuffer) int {
	n := 0
	for _, frame := range buf {
		binary.LittleEndian.PutUint32(dst[n:], math.Float32bits(frame[0]))
		binary.LittleEndian.PutUint32(dst[n+4:], math.Float32bits(frame[1]))
		n += 8
	}
	return n
}

// PutInt16LE writes the frames of buf into dst as interleaved 16-bit
// little-endian integers, saturating outside [-1, 1], and returns the number
// of bytes written. dst must hold 4 bytes per frame.
func PutInt16LE(dst []byte, buf resynth.AudioBuffer) int {
	n := 0
	for _, frame := range buf {
		binary.LittleEndian.PutUint16(dst[n:], uint16(toInt16(frame[0])))
		binary.LittleEndian.PutUint16(dst[n+2:], uint16(toInt16(frame[1])))
		n += 4
	}
	return n
}

func toInt16(v float32) int16 {
	switch {
	case v < -1:
		return -math.MaxInt16
	case v > 1:
		return math.MaxInt16
	case v != v:
		return 0
	}
	return int16(v * math.MaxInt16)
}
