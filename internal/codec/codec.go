// Package codec converts the closed set of event payload values to and from
// the byte form carried by the relay transport.
//
// A payload is a Scalar, an Array or a Grid of one Element type. Element
// types are the primitives int32, float64, float32, bool and string plus the
// geometry structs declared in this package. The Value interface is sealed,
// so a value outside that set cannot be constructed; FromAny reports
// UNSUPPORTED_PAYLOAD_TYPE for dynamically typed input instead.
//
// Floating point values keep their width on the wire: a float32 is encoded
// as a CBOR single precision float and decodes back bit-exact.
package codec

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"

	apperrors "github.com/roomrelay/roomrelay/internal/errors"
)

// Shape is the container form of a payload.
type Shape uint8

const (
	ShapeScalar Shape = iota + 1
	ShapeArray
	ShapeGrid
)

// Type is the resolved type of a payload: its shape and element kind.
type Type struct {
	Shape Shape
	Elem  Kind
}

func (t Type) String() string {
	switch t.Shape {
	case ShapeScalar:
		return t.Elem.String()
	case ShapeArray:
		return "Array<" + t.Elem.String() + ">"
	case ShapeGrid:
		return "Grid<" + t.Elem.String() + ">"
	}
	return fmt.Sprintf("Shape(%d)<%s>", t.Shape, t.Elem)
}

// Value is a payload value. It is implemented only by Scalar, Array and Grid.
type Value interface {
	Type() Type
	encode() (envelope, error)
}

// Scalar holds a single element.
type Scalar[T Element] struct {
	V T
}

// Of wraps v as a Scalar payload.
func Of[T Element](v T) Scalar[T] {
	return Scalar[T]{V: v}
}

func (s Scalar[T]) Type() Type {
	return Type{Shape: ShapeScalar, Elem: kindOf[T]()}
}

func (s Scalar[T]) encode() (envelope, error) {
	if err := checkText([]T{s.V}); err != nil {
		return envelope{}, err
	}
	data, err := encMode.Marshal(s.V)
	if err != nil {
		return envelope{}, err
	}
	return envelope{Shape: ShapeScalar, Elem: kindOf[T](), Data: data}, nil
}

// Array is a homogeneous one-dimensional sequence. Element order is
// preserved across the wire.
type Array[T Element] []T

func (a Array[T]) Type() Type {
	return Type{Shape: ShapeArray, Elem: kindOf[T]()}
}

func (a Array[T]) encode() (envelope, error) {
	cells := []T(a)
	if cells == nil {
		cells = []T{}
	}
	if err := checkText(cells); err != nil {
		return envelope{}, err
	}
	data, err := encMode.Marshal(cells)
	if err != nil {
		return envelope{}, err
	}
	return envelope{Shape: ShapeArray, Elem: kindOf[T](), Data: data}, nil
}

// checkText rejects string elements that are not valid UTF-8. The decoder
// refuses such CBOR text strings, so they are never encoded.
func checkText[T Element](cells []T) error {
	strs, ok := any(cells).([]string)
	if !ok {
		return nil
	}
	for i, v := range strs {
		if !utf8.ValidString(v) {
			return apperrors.WithMetadata(apperrors.CodeUnsupportedPayloadType,
				"string element is not valid UTF-8",
				map[string]string{"index": strconv.Itoa(i)})
		}
	}
	return nil
}

// envelope is the wire form of every payload.
type envelope struct {
	_     struct{} `cbor:",toarray"`
	Shape Shape
	Elem  Kind
	Cols  uint32
	Rows  uint32
	Data  cbor.RawMessage
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		ShortestFloat: cbor.ShortestFloatNone,
		NaNConvert:    cbor.NaNConvertNone,
		InfConvert:    cbor.InfConvertNone,
		NilContainers: cbor.NilContainerAsEmpty,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: cbor encode options: %v", err))
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: cbor decode options: %v", err))
	}
}

// Marshal encodes v into its wire form. Grids whose cell count does not match
// their dimensions fail with INVALID_SHAPE before anything is produced.
func Marshal(v Value) ([]byte, error) {
	if v == nil {
		return nil, apperrors.New(apperrors.CodeUnsupportedPayloadType, "nil payload")
	}
	env, err := v.encode()
	if err != nil {
		if apperrors.CodeOf(err) != "" {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.CodeUnsupportedPayloadType, "encode "+v.Type().String(), err)
	}
	data, err := encMode.Marshal(env)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnsupportedPayloadType, "encode envelope", err)
	}
	return data, nil
}

// Unmarshal decodes a wire payload into the Value it was produced from.
// Unknown element kinds or shapes yield UNSUPPORTED_PAYLOAD_TYPE, grids whose
// data disagrees with their dimensions yield INVALID_SHAPE, and anything that
// is not a well-formed payload yields OPERATION_REJECTED.
func Unmarshal(data []byte) (Value, error) {
	var env envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeOperationRejected, "malformed payload", err)
	}
	dec, ok := decoders[env.Elem]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeUnsupportedPayloadType, "unknown element kind %d", env.Elem)
	}
	var (
		v   Value
		err error
	)
	switch env.Shape {
	case ShapeScalar:
		v, err = dec.scalar(env)
	case ShapeArray:
		v, err = dec.array(env)
	case ShapeGrid:
		v, err = dec.grid(env)
	default:
		return nil, apperrors.Newf(apperrors.CodeUnsupportedPayloadType, "unknown shape %d", env.Shape)
	}
	if err != nil {
		if apperrors.CodeOf(err) != "" {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.CodeOperationRejected, "malformed "+Type{env.Shape, env.Elem}.String()+" payload", err)
	}
	return v, nil
}

// MustMarshal is Marshal for values known to be valid, such as literals in
// tests and demos.
func MustMarshal(v Value) []byte {
	data, err := Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

type decoder struct {
	scalar func(envelope) (Value, error)
	array  func(envelope) (Value, error)
	grid   func(envelope) (Value, error)
}

func decoderFor[T Element]() decoder {
	return decoder{
		scalar: func(env envelope) (Value, error) {
			var v T
			if err := decMode.Unmarshal(env.Data, &v); err != nil {
				return nil, err
			}
			return Scalar[T]{V: v}, nil
		},
		array: func(env envelope) (Value, error) {
			cells, err := decodeCells[T](env.Data)
			if err != nil {
				return nil, err
			}
			return Array[T](cells), nil
		},
		grid: func(env envelope) (Value, error) {
			cells, err := decodeCells[T](env.Data)
			if err != nil {
				return nil, err
			}
			return GridOf(int(env.Cols), int(env.Rows), cells)
		},
	}
}

func decodeCells[T Element](data []byte) ([]T, error) {
	var cells []T
	if err := decMode.Unmarshal(data, &cells); err != nil {
		return nil, err
	}
	if cells == nil {
		cells = []T{}
	}
	return cells, nil
}
