package mcu

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/Rione/racoon-frc/hal"
	"github.com/pkg/errors"
)

// Link layout
const (
	Devices  = 2
	Axes     = 6
	Channels = 8
	Encoders = 4
)

// Preamble marks the start of every frame from the microcontroller.
var Preamble = []byte{0xFF, 0x00, 0xFF, 0x00}

const commandPreamble = 0xFF

// Command flag bits
const (
	FlagProgramStarted = 1 << iota
	FlagOutputsEnabled
)

// Telemetry is the body sent by the microcontroller after the preamble.
// Multi-byte fields are big endian.
type Telemetry struct {
	Control  uint32
	Buttons  [Devices]uint32
	Axes     [Devices][Axes]int16
	POV      [Devices]int16
	Encoders [Encoders]int32
	Heading  int16 // centidegrees
	Volt     uint8 // 0.1 V
}

// Command is written to the microcontroller after each telemetry frame.
type Command struct {
	Preamble uint8
	Flags    uint8
	Mode     uint8
	Outputs  [Channels]int16
}

var telemetrySize = binary.Size(Telemetry{})

// scanLimit bounds the bytes skipped while looking for a preamble.
var scanLimit = 4 * telemetrySize

// readFrame syncs on the preamble and decodes one telemetry body.
func readFrame(r io.Reader) (Telemetry, error) {
	var t Telemetry
	buf := make([]byte, 1)
	matched := 0
	for skipped := 0; matched < len(Preamble); skipped++ {
		if skipped > scanLimit {
			return t, errors.Wrap(hal.ErrNoFrame, "preamble not found")
		}
		if err := readFull(r, buf); err != nil {
			return t, err
		}
		switch {
		case buf[0] == Preamble[matched]:
			matched++
		case buf[0] == Preamble[0]:
			matched = 1
		default:
			matched = 0
		}
	}

	body := make([]byte, telemetrySize)
	if err := readFull(r, body); err != nil {
		return t, err
	}
	if err := binary.Read(bytes.NewReader(body), binary.BigEndian, &t); err != nil {
		return t, errors.Wrap(err, "decode telemetry")
	}
	return t, nil
}

// readFull is io.ReadFull for ports whose Read returns 0, nil on timeout.
func readFull(r io.Reader, p []byte) error {
	for off := 0; off < len(p); {
		n, err := r.Read(p[off:])
		off += n
		if err != nil {
			if err == io.EOF {
				return errors.Wrap(hal.ErrNoFrame, "port closed")
			}
			return errors.Wrap(err, "serial read")
		}
		if n == 0 {
			return errors.Wrap(hal.ErrNoFrame, "read timeout")
		}
	}
	return nil
}

func encodeCommand(c Command) []byte {
	var b bytes.Buffer
	c.Preamble = commandPreamble
	binary.Write(&b, binary.BigEndian, c)
	return b.Bytes()
}

func toFixed(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	return int16(math.Round(v * math.MaxInt16))
}

func fromFixed(v int16) float64 {
	return math.Max(-1, float64(v)/math.MaxInt16)
}
