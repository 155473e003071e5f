// pkg/shape/persist.go
package shape

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Status reports the outcome of reading a persisted shape.
type Status int

const (
	StatusOK Status = iota
	// StatusTruncated means the stream ended before the record was complete.
	StatusTruncated
	// StatusInvalid means the record decoded but describes unusable geometry.
	StatusInvalid
	// StatusUnknownType means the type tag names no shape variant.
	StatusUnknownType
)

// String returns a short description of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTruncated:
		return "truncated"
	case StatusInvalid:
		return "invalid"
	case StatusUnknownType:
		return "unknown type"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// maxRecordCount bounds element counts so a corrupt header cannot trigger a
// huge allocation.
const maxRecordCount = 1 << 24

// WriteShape writes the type tag followed by the shape payload.
func WriteShape(w io.Writer, s Shape) error {
	if err := writeUint32(w, uint32(s.Type())); err != nil {
		return err
	}
	return s.Write(w)
}

// ReadShape reads a type tag and the matching payload.
func ReadShape(r io.Reader) (Shape, Status) {
	tag, st := readUint32(r)
	if st != StatusOK {
		return nil, st
	}
	s, ok := New(Type(tag))
	if !ok {
		return nil, StatusUnknownType
	}
	if st := s.Read(r); st != StatusOK {
		return nil, st
	}
	return s, StatusOK
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeFloat32(w io.Writer, f float64) error {
	return writeUint32(w, math.Float32bits(float32(f)))
}

func writeVec3(w io.Writer, v mgl64.Vec3) error {
	for i := 0; i < 3; i++ {
		if err := writeFloat32(w, v[i]); err != nil {
			return err
		}
	}
	return nil
}

func readUint32(r io.Reader) (uint32, Status) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, StatusTruncated
		}
		return 0, StatusInvalid
	}
	return binary.LittleEndian.Uint32(buf[:]), StatusOK
}

func readFloat32(r io.Reader) (float64, Status) {
	bits, st := readUint32(r)
	if st != StatusOK {
		return 0, st
	}
	f := float64(math.Float32frombits(bits))
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, StatusInvalid
	}
	return f, StatusOK
}

func readVec3(r io.Reader) (mgl64.Vec3, Status) {
	var v mgl64.Vec3
	for i := 0; i < 3; i++ {
		f, st := readFloat32(r)
		if st != StatusOK {
			return v, st
		}
		v[i] = f
	}
	return v, StatusOK
}

func readCount(r io.Reader) (int, Status) {
	n, st := readUint32(r)
	if st != StatusOK {
		return 0, st
	}
	if n > maxRecordCount {
		return 0, StatusInvalid
	}
	return int(n), StatusOK
}
