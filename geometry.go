package main

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const dtor = math.Pi / 180.0

// Vec3 is a point or a direction in scene coordinates, m.
// x points east, y north, z up.
type Vec3 struct {
	X, Y, Z float64
}

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float64) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) Dot(b Vec3) float64 { return floats.Dot(a.slice(), b.slice()) }
func (a Vec3) Norm() float64 { return floats.Norm(a.slice(), 2) }
func (a Vec3) slice() []float64 { return []float64{a.X, a.Y, a.Z} }
func vecFromSlice(s []float64) Vec3 { return Vec3{s[0], s[1], s[2]} }
func (a Vec3) Neg() Vec3 { return Vec3{-a.X, -a.Y, -a.Z} }
func (a Vec3) Equal(b Vec3, tol float64) bool {
	return floats.EqualApprox(a.slice(), b.slice(), tol)
}

// Cross returns a × b.
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

// Unit returns a unit-length copy; a zero vector is returned unchanged.
func (a Vec3) Unit() Vec3 {
	n := a.Norm()
	if n == 0 {
		return a
	}
	return a.Scale(1 / n)
}

// String formats the vector the way the renderer reads it.
func (a Vec3) String() string {
	return fmt.Sprintf("%0.3f %0.3f %0.3f", a.X, a.Y, a.Z)
}

/*
Rotation about the x axis (right-handed, y toward z).

Args:
	deg: rotation angle, deg

Returns:
	3x3 rotation matrix
*/
func rotX(deg float64) *mat.Dense {
	c, s := math.Cos(deg*dtor), math.Sin(deg*dtor)
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	})
}

// rotZ rotates about the vertical axis, x toward y.
func rotZ(deg float64) *mat.Dense {
	c, s := math.Cos(deg*dtor), math.Sin(deg*dtor)
	return mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
}

func applyRotation(r mat.Matrix, v Vec3) Vec3 {
	var out mat.VecDense
	out.MulVec(r, mat.NewVecDense(3, v.slice()))
	return vecFromSlice(out.RawVector().Data)
}

// ModuleFrame maps module-local axes into the scene. Modules are built
// lying flat with y running up the slope; the renderer then applies
// "-rx tilt" followed by "-rz (180 - azimuth)", and so does this frame.
type ModuleFrame struct {
	Tilt    float64 // deg
	Azimuth float64 // deg, 0 = N, 180 = S
	r       *mat.Dense
}

func NewModuleFrame(tilt, azimuth float64) ModuleFrame {
	var r mat.Dense
	r.Mul(rotZ(180-azimuth), rotX(tilt))
	return ModuleFrame{Tilt: tilt, Azimuth: azimuth, r: &r}
}

// Apply rotates a module-local vector into the scene.
func (f ModuleFrame) Apply(v Vec3) Vec3 { return applyRotation(f.r, v) }

// Normal is the unit vector leaving the front face.
func (f ModuleFrame) Normal() Vec3 { return f.Apply(Vec3{0, 0, 1}) }

// Slope is the unit vector running up the collector width.
func (f ModuleFrame) Slope() Vec3 { return f.Apply(Vec3{0, 1, 0}) }

// Across is the unit vector along the row (module x).
func (f ModuleFrame) Across() Vec3 { return f.Apply(Vec3{1, 0, 0}) }

// rotateAboutZ rotates a scene vector by deg about the vertical axis.
func rotateAboutZ(v Vec3, deg float64) Vec3 { return applyRotation(rotZ(deg), v) }

// normalizeAzimuth folds an angle into [0, 360).
func normalizeAzimuth(deg float64) float64 {
	a := math.Mod(deg, 360)
	if a < 0 {
		a += 360
	}
	return a
}
