package codec

import (
	apperrors "github.com/roomrelay/roomrelay/internal/errors"
)

// FromAny converts a dynamically typed Go value into a payload. It accepts a
// Value, a bare element, a []T (Array) or a [][]T (Grid, which must be
// rectangular). Anything else fails with UNSUPPORTED_PAYLOAD_TYPE.
func FromAny(v any) (Value, error) {
	if val, ok := v.(Value); ok {
		return val, nil
	}
	for _, conv := range converters {
		if val, ok, err := conv(v); ok {
			return val, err
		}
	}
	return nil, apperrors.Newf(apperrors.CodeUnsupportedPayloadType, "unsupported payload type %T", v)
}

var converters = []func(any) (Value, bool, error){
	convert[int32], convert[float64], convert[float32], convert[bool], convert[string],
	convert[ColorF], convert[Color], convert[HSV], convert[Point], convert[Vec2],
	convert[Rect], convert[Circle], convert[Line], convert[Triangle], convert[RectF],
	convert[Quad], convert[Ellipse], convert[RoundRect], convert[Vec3], convert[Vec4],
	convert[Float2], convert[Float3], convert[Float4], convert[Mat3x2],
}

func convert[T Element](v any) (Value, bool, error) {
	switch x := v.(type) {
	case T:
		return Scalar[T]{V: x}, true, nil
	case []T:
		return Array[T](x), true, nil
	case [][]T:
		g, err := NewGrid(x)
		if err != nil {
			return nil, true, err
		}
		return g, true, nil
	}
	return nil, false, nil
}
