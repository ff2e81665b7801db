package dslink

import (
	"math"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the control packet sent by the driver station.
const (
	fieldSequence = 1
	fieldControl  = 2
	fieldJoystick = 3
)

// Field numbers inside a joystick entry.
const (
	fieldButtons = 1
	fieldAxes    = 2
	fieldPOV     = 3
)

// Field numbers of the status reply.
const (
	fieldStatusSequence = 1
	fieldStatusMode     = 2
	fieldStatusStarted  = 3
)

// Joystick is the raw state of one input device.
type Joystick struct {
	Buttons uint32
	Axes    []float32
	POV     int32
}

// Packet is one control packet.
type Packet struct {
	Sequence  uint64
	Control   uint32
	Joysticks []Joystick
}

// Status is the robot's reply.
type Status struct {
	Sequence       uint64
	Mode           uint32
	ProgramStarted bool
}

// MarshalPacket encodes p.
func MarshalPacket(p Packet) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldSequence, protowire.VarintType)
	b = protowire.AppendVarint(b, p.Sequence)
	b = protowire.AppendTag(b, fieldControl, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.Control))
	for _, j := range p.Joysticks {
		b = protowire.AppendTag(b, fieldJoystick, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalJoystick(j))
	}
	return b
}

func marshalJoystick(j Joystick) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldButtons, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(j.Buttons))
	if len(j.Axes) > 0 {
		var packed []byte
		for _, a := range j.Axes {
			packed = protowire.AppendFixed32(packed, math.Float32bits(a))
		}
		b = protowire.AppendTag(b, fieldAxes, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	b = protowire.AppendTag(b, fieldPOV, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(j.POV)))
	return b
}

// UnmarshalPacket decodes a control packet. Unknown fields are skipped.
func UnmarshalPacket(b []byte) (Packet, error) {
	var p Packet
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return p, errors.Wrap(protowire.ParseError(n), "packet tag")
		}
		b = b[n:]
		switch {
		case num == fieldSequence && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return p, errors.Wrap(protowire.ParseError(n), "sequence")
			}
			p.Sequence = v
			b = b[n:]
		case num == fieldControl && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return p, errors.Wrap(protowire.ParseError(n), "control")
			}
			p.Control = uint32(v)
			b = b[n:]
		case num == fieldJoystick && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return p, errors.Wrap(protowire.ParseError(n), "joystick")
			}
			j, err := unmarshalJoystick(v)
			if err != nil {
				return p, err
			}
			p.Joysticks = append(p.Joysticks, j)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return p, errors.Wrapf(protowire.ParseError(n), "field %d", num)
			}
			b = b[n:]
		}
	}
	return p, nil
}

func unmarshalJoystick(b []byte) (Joystick, error) {
	j := Joystick{POV: -1}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return j, errors.Wrap(protowire.ParseError(n), "joystick tag")
		}
		b = b[n:]
		switch {
		case num == fieldButtons && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return j, errors.Wrap(protowire.ParseError(n), "buttons")
			}
			j.Buttons = uint32(v)
			b = b[n:]
		case num == fieldAxes && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return j, errors.Wrap(protowire.ParseError(n), "axes")
			}
			for len(v) > 0 {
				bits, m := protowire.ConsumeFixed32(v)
				if m < 0 {
					return j, errors.Wrap(protowire.ParseError(m), "axis")
				}
				j.Axes = append(j.Axes, math.Float32frombits(bits))
				v = v[m:]
			}
			b = b[n:]
		case num == fieldPOV && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return j, errors.Wrap(protowire.ParseError(n), "pov")
			}
			j.POV = int32(protowire.DecodeZigZag(v))
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return j, errors.Wrapf(protowire.ParseError(n), "joystick field %d", num)
			}
			b = b[n:]
		}
	}
	return j, nil
}

// MarshalStatus encodes s.
func MarshalStatus(s Status) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldStatusSequence, protowire.VarintType)
	b = protowire.AppendVarint(b, s.Sequence)
	b = protowire.AppendTag(b, fieldStatusMode, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.Mode))
	b = protowire.AppendTag(b, fieldStatusStarted, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(s.ProgramStarted))
	return b
}

// UnmarshalStatus decodes a status reply.
func UnmarshalStatus(b []byte) (Status, error) {
	var s Status
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return s, errors.Wrap(protowire.ParseError(n), "status tag")
		}
		b = b[n:]
		if typ != protowire.VarintType {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return s, errors.Wrapf(protowire.ParseError(n), "status field %d", num)
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return s, errors.Wrap(protowire.ParseError(n), "status value")
		}
		b = b[n:]
		switch num {
		case fieldStatusSequence:
			s.Sequence = v
		case fieldStatusMode:
			s.Mode = uint32(v)
		case fieldStatusStarted:
			s.ProgramStarted = protowire.DecodeBool(v)
		}
	}
	return s, nil
}
