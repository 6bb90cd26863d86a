package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// RotationMatrix is a 3x3 matrix in row major order.
// m[3*r + c] is the element in the r'th row and c'th column.
type RotationMatrix struct {
	mat [9]float64
}

// At returns the value in the rotation matrix at the specified row and column.
func (rm *RotationMatrix) At(row, col int) float64 {
	return rm.mat[3*row+col]
}

// Col returns the column of the rotation matrix as an r3.Vector. Column c is the image of the
// c'th basis vector, so Col(2) is the rotated Z axis.
func (rm *RotationMatrix) Col(col int) r3.Vector {
	return r3.Vector{X: rm.mat[col], Y: rm.mat[col+3], Z: rm.mat[col+6]}
}

// EulerAngles decomposes the matrix as Rz(yaw)·Ry(pitch)·Rx(roll), with pitch in [-π/2, π/2]. At ±90°
// pitch only yaw∓roll is defined and yaw takes whatever the first column still carries.
func (rm *RotationMatrix) EulerAngles() *EulerAngles {
	yaw := math.Atan2(rm.At(1, 0), rm.At(0, 0))
	sy, cy := math.Sincos(yaw)
	// rows of Rz(-yaw)·rm, which is Ry(pitch)·Rx(roll)
	cosPitch := cy*rm.At(0, 0) + sy*rm.At(1, 0)
	sinRoll := sy*rm.At(0, 2) - cy*rm.At(1, 2)
	cosRoll := cy*rm.At(1, 1) - sy*rm.At(0, 1)
	return &EulerAngles{
		Roll:  math.Atan2(sinRoll, cosRoll),
		Pitch: math.Atan2(-rm.At(2, 0), cosPitch),
		Yaw:   yaw,
	}
}
