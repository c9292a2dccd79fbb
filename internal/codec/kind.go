package codec

import "fmt"

// Element is the closed set of types a payload can be built from.
type Element interface {
	int32 | float64 | float32 | bool | string |
		ColorF | Color | HSV | Point | Vec2 | Rect | Circle | Line | Triangle |
		RectF | Quad | Ellipse | RoundRect | Vec3 | Vec4 | Float2 | Float3 | Float4 | Mat3x2
}

// Kind identifies an element type on the wire. Values are part of the wire
// format and must not be renumbered.
type Kind uint8

const (
	KindInt32 Kind = iota + 1
	KindFloat64
	KindFloat32
	KindBool
	KindString
	KindColorF
	KindColor
	KindHSV
	KindPoint
	KindVec2
	KindRect
	KindCircle
	KindLine
	KindTriangle
	KindRectF
	KindQuad
	KindEllipse
	KindRoundRect
	KindVec3
	KindVec4
	KindFloat2
	KindFloat3
	KindFloat4
	KindMat3x2
)

var kindNames = map[Kind]string{
	KindInt32:     "int32",
	KindFloat64:   "float64",
	KindFloat32:   "float32",
	KindBool:      "bool",
	KindString:    "string",
	KindColorF:    "ColorF",
	KindColor:     "Color",
	KindHSV:       "HSV",
	KindPoint:     "Point",
	KindVec2:      "Vec2",
	KindRect:      "Rect",
	KindCircle:    "Circle",
	KindLine:      "Line",
	KindTriangle:  "Triangle",
	KindRectF:     "RectF",
	KindQuad:      "Quad",
	KindEllipse:   "Ellipse",
	KindRoundRect: "RoundRect",
	KindVec3:      "Vec3",
	KindVec4:      "Vec4",
	KindFloat2:    "Float2",
	KindFloat3:    "Float3",
	KindFloat4:    "Float4",
	KindMat3x2:    "Mat3x2",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func kindOf[T Element]() Kind {
	var zero T
	switch any(zero).(type) {
	case int32:
		return KindInt32
	case float64:
		return KindFloat64
	case float32:
		return KindFloat32
	case bool:
		return KindBool
	case string:
		return KindString
	case ColorF:
		return KindColorF
	case Color:
		return KindColor
	case HSV:
		return KindHSV
	case Point:
		return KindPoint
	case Vec2:
		return KindVec2
	case Rect:
		return KindRect
	case Circle:
		return KindCircle
	case Line:
		return KindLine
	case Triangle:
		return KindTriangle
	case RectF:
		return KindRectF
	case Quad:
		return KindQuad
	case Ellipse:
		return KindEllipse
	case RoundRect:
		return KindRoundRect
	case Vec3:
		return KindVec3
	case Vec4:
		return KindVec4
	case Float2:
		return KindFloat2
	case Float3:
		return KindFloat3
	case Float4:
		return KindFloat4
	case Mat3x2:
		return KindMat3x2
	}
	panic("codec: unreachable element type")
}

var decoders = map[Kind]decoder{
	KindInt32:     decoderFor[int32](),
	KindFloat64:   decoderFor[float64](),
	KindFloat32:   decoderFor[float32](),
	KindBool:      decoderFor[bool](),
	KindString:    decoderFor[string](),
	KindColorF:    decoderFor[ColorF](),
	KindColor:     decoderFor[Color](),
	KindHSV:       decoderFor[HSV](),
	KindPoint:     decoderFor[Point](),
	KindVec2:      decoderFor[Vec2](),
	KindRect:      decoderFor[Rect](),
	KindCircle:    decoderFor[Circle](),
	KindLine:      decoderFor[Line](),
	KindTriangle:  decoderFor[Triangle](),
	KindRectF:     decoderFor[RectF](),
	KindQuad:      decoderFor[Quad](),
	KindEllipse:   decoderFor[Ellipse](),
	KindRoundRect: decoderFor[RoundRect](),
	KindVec3:      decoderFor[Vec3](),
	KindVec4:      decoderFor[Vec4](),
	KindFloat2:    decoderFor[Float2](),
	KindFloat3:    decoderFor[Float3](),
	KindFloat4:    decoderFor[Float4](),
	KindMat3x2:    decoderFor[Mat3x2](),
}
