package codec

// Geometry values travel as CBOR arrays of their fields, in declaration order.

// ColorF is an RGBA color with double precision components in [0, 1].
type ColorF struct {
	_          struct{} `cbor:",toarray"`
	R, G, B, A float64
}

// Color is an 8-bit RGBA color.
type Color struct {
	_          struct{} `cbor:",toarray"`
	R, G, B, A uint8
}

// HSV is a hue/saturation/value color with alpha. H is in degrees.
type HSV struct {
	_          struct{} `cbor:",toarray"`
	H, S, V, A float64
}

// Point is an integer 2D coordinate.
type Point struct {
	_    struct{} `cbor:",toarray"`
	X, Y int32
}

// Vec2 is a double precision 2D vector.
type Vec2 struct {
	_    struct{} `cbor:",toarray"`
	X, Y float64
}

// Vec3 is a double precision 3D vector.
type Vec3 struct {
	_       struct{} `cbor:",toarray"`
	X, Y, Z float64
}

// Vec4 is a double precision 4D vector.
type Vec4 struct {
	_          struct{} `cbor:",toarray"`
	X, Y, Z, W float64
}

// Float2 is a single precision 2D vector.
type Float2 struct {
	_    struct{} `cbor:",toarray"`
	X, Y float32
}

// Float3 is a single precision 3D vector.
type Float3 struct {
	_       struct{} `cbor:",toarray"`
	X, Y, Z float32
}

// Float4 is a single precision 4D vector.
type Float4 struct {
	_          struct{} `cbor:",toarray"`
	X, Y, Z, W float32
}

// Rect is an integer rectangle anchored at its top-left corner.
type Rect struct {
	_          struct{} `cbor:",toarray"`
	X, Y, W, H int32
}

// RectF is a double precision rectangle anchored at its top-left corner.
type RectF struct {
	_          struct{} `cbor:",toarray"`
	X, Y, W, H float64
}

// Circle is a circle given by its center and radius.
type Circle struct {
	_      struct{} `cbor:",toarray"`
	Center Vec2
	R      float64
}

// Ellipse is an axis-aligned ellipse with horizontal radius A and vertical
// radius B.
type Ellipse struct {
	_      struct{} `cbor:",toarray"`
	Center Vec2
	A, B   float64
}

// Line is a segment between two points.
type Line struct {
	_          struct{} `cbor:",toarray"`
	Begin, End Vec2
}

// Triangle is given by its three vertices.
type Triangle struct {
	_          struct{} `cbor:",toarray"`
	P0, P1, P2 Vec2
}

// Quad is given by its four vertices in winding order.
type Quad struct {
	_              struct{} `cbor:",toarray"`
	P0, P1, P2, P3 Vec2
}

// RoundRect is a rectangle with rounded corners of radius R.
type RoundRect struct {
	_    struct{} `cbor:",toarray"`
	Rect RectF
	R    float64
}

// Mat3x2 is a 2D affine transform in row-major order.
type Mat3x2 struct {
	_                            struct{} `cbor:",toarray"`
	M11, M12, M21, M22, M31, M32 float32
}

// TriangleAt builds an equilateral triangle centered at c with the given side
// length, pointing up.
func TriangleAt(c Vec2, side float64) Triangle {
	// height of an equilateral triangle is side * sqrt(3) / 2
	const sqrt3 = 1.7320508075688772
	h := side * sqrt3 / 2
	return Triangle{
		P0: Vec2{X: c.X, Y: c.Y - h*2/3},
		P1: Vec2{X: c.X + side/2, Y: c.Y + h/3},
		P2: Vec2{X: c.X - side/2, Y: c.Y + h/3},
	}
}
