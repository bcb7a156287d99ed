package websocket

import (
	"math"

	"github.com/aukilabs/flock/simulation"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	ErrTypeUnknownFormat = "unknown-format"
	ErrTypeInvalidFrame  = "invalid-frame"
)

// Format is the encoding of the frames sent to a viewer.
type Format string

const (
	// Protocol buffers wire format, sent as binary messages.
	FormatBinary Format = "binary"

	// JSON, sent as text messages.
	FormatJSON Format = "json"
)

// ParseFormat returns the format with the given name. An empty name is the
// binary format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatBinary:
		return FormatBinary, nil

	case FormatJSON:
		return FormatJSON, nil

	default:
		return "", errors.New("unknown frame format").
			WithType(ErrTypeUnknownFormat).
			WithTag("format", s)
	}
}

// Binary frame field numbers.
//
//	message Frame {
//	  uint64 tick = 1;
//	  fixed64 digest = 2;
//	  double width = 3;
//	  double height = 4;
//	  repeated Circle circles = 5;
//	}
//
//	message Circle {
//	  double x = 1;
//	  double y = 2;
//	  double r = 3;
//	  string c = 4;
//	}
const (
	frameTickField    protowire.Number = 1
	frameDigestField  protowire.Number = 2
	frameWidthField   protowire.Number = 3
	frameHeightField  protowire.Number = 4
	frameCirclesField protowire.Number = 5

	circleXField      protowire.Number = 1
	circleYField      protowire.Number = 2
	circleRadiusField protowire.Number = 3
	circleColorField  protowire.Number = 4
)

// EncodeFrame encodes the frame in the given format.
func EncodeFrame(format Format, f simulation.Frame) ([]byte, error) {
	switch format {
	case FormatBinary:
		return appendBinaryFrame(nil, f), nil

	case FormatJSON:
		return json.Marshal(f)

	default:
		return nil, errors.New("unknown frame format").
			WithType(ErrTypeUnknownFormat).
			WithTag("format", format)
	}
}

func appendBinaryFrame(b []byte, f simulation.Frame) []byte {
	b = protowire.AppendTag(b, frameTickField, protowire.VarintType)
	b = protowire.AppendVarint(b, f.Tick)
	if f.Digest != 0 {
		b = protowire.AppendTag(b, frameDigestField, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, f.Digest)
	}
	b = appendDouble(b, frameWidthField, f.Width)
	b = appendDouble(b, frameHeightField, f.Height)

	var circle []byte
	for _, c := range f.Circles {
		circle = appendDouble(circle[:0], circleXField, c.X)
		circle = appendDouble(circle, circleYField, c.Y)
		circle = appendDouble(circle, circleRadiusField, c.Radius)
		if c.Color != "" {
			circle = protowire.AppendTag(circle, circleColorField, protowire.BytesType)
			circle = protowire.AppendString(circle, c.Color)
		}

		b = protowire.AppendTag(b, frameCirclesField, protowire.BytesType)
		b = protowire.AppendBytes(b, circle)
	}
	return b
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

// DecodeFrame decodes a frame encoded in the binary format. Unknown fields are
// skipped.
func DecodeFrame(b []byte) (simulation.Frame, error) {
	var f simulation.Frame

	for len(b) != 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return simulation.Frame{}, decodeError(n)
		}
		b = b[n:]

		switch {
		case num == frameTickField && typ == protowire.VarintType:
			f.Tick, n = protowire.ConsumeVarint(b)

		case num == frameDigestField && typ == protowire.Fixed64Type:
			f.Digest, n = protowire.ConsumeFixed64(b)

		case num == frameWidthField && typ == protowire.Fixed64Type:
			f.Width, n = consumeDouble(b)

		case num == frameHeightField && typ == protowire.Fixed64Type:
			f.Height, n = consumeDouble(b)

		case num == frameCirclesField && typ == protowire.BytesType:
			var v []byte
			if v, n = protowire.ConsumeBytes(b); n < 0 {
				break
			}

			c, err := decodeCircle(v)
			if err != nil {
				return simulation.Frame{}, err
			}
			f.Circles = append(f.Circles, c)

		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}

		if n < 0 {
			return simulation.Frame{}, decodeError(n)
		}
		b = b[n:]
	}

	return f, nil
}

func decodeCircle(b []byte) (simulation.Circle, error) {
	var c simulation.Circle

	for len(b) != 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return simulation.Circle{}, decodeError(n)
		}
		b = b[n:]

		switch {
		case num == circleXField && typ == protowire.Fixed64Type:
			c.X, n = consumeDouble(b)

		case num == circleYField && typ == protowire.Fixed64Type:
			c.Y, n = consumeDouble(b)

		case num == circleRadiusField && typ == protowire.Fixed64Type:
			c.Radius, n = consumeDouble(b)

		case num == circleColorField && typ == protowire.BytesType:
			c.Color, n = protowire.ConsumeString(b)

		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}

		if n < 0 {
			return simulation.Circle{}, decodeError(n)
		}
		b = b[n:]
	}

	return c, nil
}

func consumeDouble(b []byte) (float64, int) {
	v, n := protowire.ConsumeFixed64(b)
	return math.Float64frombits(v), n
}

func decodeError(n int) error {
	return errors.New("decoding frame failed").
		WithType(ErrTypeInvalidFrame).
		Wrap(protowire.ParseError(n))
}
